package manifest

import (
	"context"
	"testing"
	"time"

	"screwdata/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:manifest")
	defer cleanup()

	db, err := OpenDB(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	store := NewStore(db)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	{
		_, ok, err := store.Lookup(ctx, "s01")
		if err != nil {
			t.Fatal(err)
		}
		require.False(t, ok)
	}

	now := time.Now().Truncate(time.Second)
	{
		err := store.Record(ctx, Entry{
			Scenario:     "s01",
			FileName:     "s01_thread-degradation.zip",
			Md5Checksum:  "a1f6bb2f7b8c0d93e45a718c2f9d0b64",
			SizeBytes:    1 << 20,
			DownloadedAt: now,
			VerifiedAt:   now,
		})
		if err != nil {
			t.Fatal(err)
		}

		entry, ok, err := store.Lookup(ctx, "s01")
		if err != nil {
			t.Fatal(err)
		}
		require.True(t, ok)
		require.Equal(t, "s01_thread-degradation.zip", entry.FileName)
		require.Equal(t, int64(1<<20), entry.SizeBytes)
		require.Equal(t, now.Unix(), entry.VerifiedAt.Unix())
	}

	// upsert replaces the existing row
	{
		err := store.Record(ctx, Entry{
			Scenario:     "s01",
			FileName:     "s01_thread-degradation.zip",
			Md5Checksum:  "a1f6bb2f7b8c0d93e45a718c2f9d0b64",
			SizeBytes:    2 << 20,
			DownloadedAt: now,
			VerifiedAt:   now,
		})
		if err != nil {
			t.Fatal(err)
		}

		entry, _, err := store.Lookup(ctx, "s01")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, int64(2<<20), entry.SizeBytes)
	}

	{
		later := now.Add(time.Hour)
		err := store.Touch(ctx, "s01", later)
		if err != nil {
			t.Fatal(err)
		}
		entry, _, err := store.Lookup(ctx, "s01")
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, later.Unix(), entry.VerifiedAt.Unix())
	}

	{
		err := store.Record(ctx, Entry{
			Scenario:     "s02",
			FileName:     "s02_surface-friction.zip",
			Md5Checksum:  "3c9ad41e0f72b8a6915d2c04e7fa8d12",
			SizeBytes:    42,
			DownloadedAt: now,
			VerifiedAt:   now,
		})
		if err != nil {
			t.Fatal(err)
		}

		entries, err := store.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		require.Len(t, entries, 2)
		require.Equal(t, "s01", entries[0].Scenario)
		require.Equal(t, "s02", entries[1].Scenario)
	}

	{
		err := store.Delete(ctx, "s01")
		if err != nil {
			t.Fatal(err)
		}
		_, ok, err := store.Lookup(ctx, "s01")
		if err != nil {
			t.Fatal(err)
		}
		require.False(t, ok)

		err = store.Purge(ctx)
		if err != nil {
			t.Fatal(err)
		}
		entries, err := store.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		require.Empty(t, entries)
	}
}
