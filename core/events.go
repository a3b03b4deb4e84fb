package core

import "time"

// EventType enumerates domain events emitted by the engine.
type EventType string

const (
	EventCounterUpdated      EventType = "counter_updated"
	EventAchievementUnlocked EventType = "achievement_unlocked"
	EventAchievementClaimed  EventType = "achievement_claimed"
	EventItemCollected       EventType = "item_collected"
	EventCollectionCompleted EventType = "collection_completed"
)

// Event is an immutable domain event. Delivery is fire-and-forget and
// at-least-once; consumers must be idempotent on the carried ids.
type Event struct {
	Type        EventType  `json:"type"`
	Time        time.Time  `json:"time"`
	Save        SaveID     `json:"save"`
	Achievement string     `json:"achievement,omitempty"`
	Category    Category   `json:"category,omitempty"`
	Rarity      Rarity     `json:"rarity,omitempty"`
	Collection  string     `json:"collection,omitempty"`
	Item        string     `json:"item,omitempty"`
	Counter     CounterKey `json:"counter,omitempty"`
	Value       int64      `json:"value,omitempty"`
}

func NewCounterUpdated(save SaveID, key CounterKey, value int64) Event {
	return Event{Type: EventCounterUpdated, Time: time.Now().UTC(), Save: save, Counter: key, Value: value}
}

func NewAchievementUnlocked(save SaveID, def AchievementDef) Event {
	return Event{Type: EventAchievementUnlocked, Time: time.Now().UTC(), Save: save, Achievement: def.ID, Category: def.Category, Rarity: def.Rarity}
}

func NewAchievementClaimed(save SaveID, def AchievementDef) Event {
	return Event{Type: EventAchievementClaimed, Time: time.Now().UTC(), Save: save, Achievement: def.ID, Category: def.Category, Rarity: def.Rarity}
}

func NewItemCollected(save SaveID, collectionID string, item CollectionItemDef) Event {
	return Event{Type: EventItemCollected, Time: time.Now().UTC(), Save: save, Collection: collectionID, Item: item.ID, Rarity: item.Rarity}
}

func NewCollectionCompleted(save SaveID, def CollectionDef) Event {
	return Event{Type: EventCollectionCompleted, Time: time.Now().UTC(), Save: save, Collection: def.ID}
}
