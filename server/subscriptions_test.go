package server

import (
	"sort"
	"testing"
)

func TestSubscriptionManager_Lifecycle(t *testing.T) {
	m := NewSubscriptionManager()

	if m.SubscriptionCount() != 0 {
		t.Fatalf("new manager holds %d subscriptions", m.SubscriptionCount())
	}

	m.Subscribe("sess-a", "doc://readme")
	m.Subscribe("sess-a", "doc://readme") // duplicate collapses
	m.Subscribe("sess-b", "doc://readme")
	m.Subscribe("sess-a", "doc://changelog")

	if got := m.SubscriptionCount(); got != 3 {
		t.Errorf("SubscriptionCount() = %d, want 3", got)
	}
	if !m.IsSubscribed("sess-a", "doc://readme") {
		t.Error("sess-a should watch doc://readme")
	}
	if m.IsSubscribed("sess-b", "doc://changelog") {
		t.Error("sess-b should not watch doc://changelog")
	}

	watchers := m.Subscribers("doc://readme")
	sort.Strings(watchers)
	if len(watchers) != 2 || watchers[0] != "sess-a" || watchers[1] != "sess-b" {
		t.Errorf("Subscribers(doc://readme) = %v", watchers)
	}

	m.Unsubscribe("sess-a", "doc://readme")
	if m.IsSubscribed("sess-a", "doc://readme") {
		t.Error("sess-a still watching after unsubscribe")
	}
	if !m.IsSubscribed("sess-b", "doc://readme") {
		t.Error("unsubscribing sess-a dropped sess-b")
	}
}

func TestSubscriptionManager_UnsubscribeAll(t *testing.T) {
	m := NewSubscriptionManager()

	m.Subscribe("sess-a", "doc://a")
	m.Subscribe("sess-a", "doc://b")
	m.Subscribe("sess-b", "doc://a")

	m.UnsubscribeAll("sess-a")

	if m.IsSubscribed("sess-a", "doc://a") || m.IsSubscribed("sess-a", "doc://b") {
		t.Error("sess-a still has subscriptions")
	}
	if !m.IsSubscribed("sess-b", "doc://a") {
		t.Error("UnsubscribeAll(sess-a) dropped sess-b")
	}
	if got := m.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", got)
	}
}

func TestSubscriptionManager_HasSubscribers(t *testing.T) {
	m := NewSubscriptionManager()

	if m.HasSubscribers("doc://a") {
		t.Error("empty manager reports subscribers")
	}
	m.Subscribe("sess-a", "doc://a")
	if !m.HasSubscribers("doc://a") {
		t.Error("subscribed URI reports no subscribers")
	}
	m.Unsubscribe("sess-a", "doc://a")
	if m.HasSubscribers("doc://a") {
		t.Error("fully unsubscribed URI still reports subscribers")
	}
}

func TestSubscriptionManager_UnknownPairs(t *testing.T) {
	m := NewSubscriptionManager()

	// Must not panic or create state.
	m.Unsubscribe("ghost", "doc://nothing")
	m.UnsubscribeAll("ghost")

	if m.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", m.SubscriptionCount())
	}
	if subs := m.Subscribers("doc://nothing"); subs != nil {
		t.Errorf("Subscribers(unknown) = %v, want nil", subs)
	}
}
