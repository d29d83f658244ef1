package domain

import (
	"fmt"
	"strings"
)

// Kind identifica un tipo de registro del lado de la consola.
type Kind string

const (
	KindClient          Kind = "client"
	KindSupplier        Kind = "supplier"
	KindProduct         Kind = "product"
	KindPriceList       Kind = "priceList"
	KindUom             Kind = "uom"
	KindCheque          Kind = "cheque"
	KindInventoryMove   Kind = "inventoryMove"
	KindProductionOrder Kind = "productionOrder"
	KindPurchase        Kind = "purchase"
	KindSalesOrder      Kind = "salesOrder"
)

// Kinds devuelve todos los tipos conocidos en orden estable.
func Kinds() []Kind {
	return []Kind{
		KindClient, KindSupplier, KindProduct, KindPriceList, KindUom,
		KindCheque, KindInventoryMove, KindProductionOrder, KindPurchase, KindSalesOrder,
	}
}

// ParseKind acepta el nombre canónico sin distinguir mayúsculas ni separadores
// ("priceList", "price-list", "PRICE_LIST").
func ParseKind(raw string) (Kind, error) {
	folded := foldKey(raw)
	for _, k := range Kinds() {
		if foldKey(string(k)) == folded {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
}

// foldKey normaliza un nombre de campo o tipo para comparaciones tolerantes.
func foldKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if r == '_' || r == '-' || r == ' ' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
