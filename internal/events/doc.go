// Package events delivers task lifecycle notifications to connected clients.
//
// Events are best-effort and at-most-once: there is no acknowledgement and no
// replay, so clients treat them as hints and refetch state when they need
// certainty. A Hub fans events out to in-process subscribers grouped by
// project; a RedisRelay carries events between server instances and feeds
// each instance's Hub.
package events
