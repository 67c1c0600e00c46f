// Package command dispatches control commands to devices over the
// message bus.
//
// Dispatch is fire and forget: the payload is published to the device's
// command topic and no acknowledgment is awaited. After a successful
// relay command the dispatcher records an optimistic prediction in the
// state engine so the UI reflects the switch immediately; the next
// observed report replaces the prediction with reality.
//
// The package also recognizes relay control intents in natural language
// queries, used by the assist router to act on "turn on the living
// room" style requests without a round trip to a model.
package command
