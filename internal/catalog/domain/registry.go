package domain

import (
	"reflect"

	sharedEvents "github.com/alkimyk/cmr/shared/events"
)

func NewEventRegistry() map[string]sharedEvents.EventMetadata {
	changed := reflect.TypeOf(sharedEvents.RecordChanged{})
	return map[string]sharedEvents.EventMetadata{
		sharedEvents.RecordCreated: {Type: changed, Topic: sharedEvents.CatalogTopic},
		sharedEvents.RecordUpdated: {Type: changed, Topic: sharedEvents.CatalogTopic},
		sharedEvents.RecordDeleted: {Type: changed, Topic: sharedEvents.CatalogTopic},
	}
}
