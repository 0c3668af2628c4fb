package notify

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"suratadmin/internal/server/service"
)

func TestMemoryInbox(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)

	t.Run("drain returns oldest first and empties", func(t *testing.T) {
		inbox := NewMemoryInbox(time.Hour)
		inbox.now = func() time.Time { return now }
		inbox.Push(ctx, "u1", New(service.NotifySuccess, "Berhasil", "satu", now))
		inbox.Push(ctx, "u1", New(service.NotifyFailure, "Gagal menghapus", "dua", now))
		inbox.Push(ctx, "u2", New(service.NotifySuccess, "Berhasil", "lain", now))

		got, err := inbox.Drain(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 || got[0].Message != "satu" || got[1].Message != "dua" {
			t.Errorf("unexpected notifications %+v", got)
		}

		again, _ := inbox.Drain(ctx, "u1")
		if len(again) != 0 {
			t.Errorf("expected empty inbox after drain, got %+v", again)
		}
		if other, _ := inbox.Drain(ctx, "u2"); len(other) != 1 {
			t.Errorf("other owner's inbox affected: %+v", other)
		}
	})

	t.Run("expired notifications are not returned", func(t *testing.T) {
		inbox := NewMemoryInbox(10 * time.Minute)
		inbox.now = func() time.Time { return now }
		inbox.Push(ctx, "u1", New(service.NotifySuccess, "lama", "", now.Add(-time.Hour)))
		inbox.Push(ctx, "u1", New(service.NotifySuccess, "baru", "", now.Add(-time.Minute)))

		got, _ := inbox.Drain(ctx, "u1")
		if len(got) != 1 || got[0].Title != "baru" {
			t.Errorf("unexpected notifications %+v", got)
		}
	})

	t.Run("dismiss removes one", func(t *testing.T) {
		inbox := NewMemoryInbox(0)
		a := New(service.NotifySuccess, "a", "", now)
		b := New(service.NotifySuccess, "b", "", now)
		inbox.Push(ctx, "u1", a)
		inbox.Push(ctx, "u1", b)

		ok, err := inbox.Dismiss(ctx, "u1", a.ID)
		if err != nil || !ok {
			t.Fatalf("Dismiss() = %v, %v", ok, err)
		}
		if ok, _ := inbox.Dismiss(ctx, "u1", a.ID); ok {
			t.Error("second dismiss should report false")
		}
		if ok, _ := inbox.Dismiss(ctx, "u2", b.ID); ok {
			t.Error("dismiss must be scoped to the owner")
		}

		got, _ := inbox.Drain(ctx, "u1")
		if len(got) != 1 || got[0].ID != b.ID {
			t.Errorf("unexpected notifications %+v", got)
		}
	})

	t.Run("prune", func(t *testing.T) {
		inbox := NewMemoryInbox(10 * time.Minute)
		inbox.Push(ctx, "u1", New(service.NotifySuccess, "old", "", now.Add(-time.Hour)))
		inbox.Push(ctx, "u2", New(service.NotifySuccess, "old", "", now.Add(-time.Hour)))
		inbox.Push(ctx, "u2", New(service.NotifySuccess, "fresh", "", now))

		if removed := inbox.Prune(now); removed != 2 {
			t.Errorf("expected 2 pruned, got %d", removed)
		}
		if _, ok := inbox.items["u1"]; ok {
			t.Error("empty owner should be dropped")
		}
		if len(inbox.items["u2"]) != 1 {
			t.Errorf("expected 1 kept for u2, got %d", len(inbox.items["u2"]))
		}
	})
}

func TestNew(t *testing.T) {
	a := New(service.NotifySuccess, "t", "m", time.Now())
	b := New(service.NotifySuccess, "t", "m", time.Now())
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("expected unique ids, got %q and %q", a.ID, b.ID)
	}
}

type failingInbox struct{}

func (failingInbox) Push(context.Context, string, Notification) error {
	return errors.New("inbox unavailable")
}

func (failingInbox) Drain(context.Context, string) ([]Notification, error) {
	return nil, errors.New("inbox unavailable")
}

func (failingInbox) Dismiss(context.Context, string, string) (bool, error) {
	return false, errors.New("inbox unavailable")
}

func TestSink(t *testing.T) {
	t.Run("delivers to the owner's inbox", func(t *testing.T) {
		inbox := NewMemoryInbox(time.Hour)
		sink := NewSink(inbox, "u1", nil)

		sink.Notify(service.NotifyFailure, "Gagal memuat data", "Tidak dapat memuat daftar format surat: timeout")

		got, _ := inbox.Drain(context.Background(), "u1")
		if len(got) != 1 {
			t.Fatalf("expected 1 notification, got %d", len(got))
		}
		if got[0].Kind != service.NotifyFailure || got[0].Title != "Gagal memuat data" {
			t.Errorf("unexpected notification %+v", got[0])
		}
	})

	t.Run("delivery failure is logged", func(t *testing.T) {
		core, logs := observer.New(zap.WarnLevel)
		sink := NewSink(failingInbox{}, "u1", zap.New(core))

		sink.Notify(service.NotifySuccess, "Berhasil", "Format surat telah dihapus")

		if logs.FilterMessage("failed to deliver notification").Len() != 1 {
			t.Errorf("expected a warning, got %v", logs.All())
		}
	})
}

func TestTee(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	inbox := NewMemoryInbox(0)
	tee := Tee{NewSink(inbox, "u1", nil), LogSink{Logger: zap.New(core)}}

	tee.Notify(service.NotifyFailure, "Gagal mengunggah", "boom")

	if got, _ := inbox.Drain(context.Background(), "u1"); len(got) != 1 {
		t.Errorf("expected inbox delivery, got %d", len(got))
	}
	entries := logs.All()
	if len(entries) != 1 || entries[0].Level != zap.WarnLevel {
		t.Errorf("expected one warn entry, got %v", entries)
	}
}

// TestRedisInbox runs against a real server when REDIS_ADDR is set.
func TestRedisInbox(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client, err := NewRedisClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 15)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	owner := "test-" + New(service.NotifySuccess, "", "", time.Now()).ID
	t.Cleanup(func() { client.Del(context.Background(), key(owner)) })

	inbox := NewRedisInbox(client, time.Minute, nil)
	a := New(service.NotifySuccess, "Berhasil", "a", time.Now())
	b := New(service.NotifyFailure, "Gagal", "b", time.Now())
	if err := inbox.Push(ctx, owner, a); err != nil {
		t.Fatal(err)
	}
	if err := inbox.Push(ctx, owner, b); err != nil {
		t.Fatal(err)
	}

	if ttl := client.TTL(ctx, key(owner)).Val(); ttl <= 0 {
		t.Errorf("expected ttl on inbox key, got %v", ttl)
	}

	ok, err := inbox.Dismiss(ctx, owner, a.ID)
	if err != nil || !ok {
		t.Fatalf("Dismiss() = %v, %v", ok, err)
	}

	got, err := inbox.Drain(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != b.ID {
		t.Errorf("unexpected notifications %+v", got)
	}
	if n := client.Exists(ctx, key(owner)).Val(); n != 0 {
		t.Error("drain should delete the key")
	}
}
