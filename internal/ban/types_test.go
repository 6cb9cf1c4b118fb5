package ban

import (
	"fmt"
	"testing"
	"time"
)

// stringifyHash converts the field map written to the store into the
// string-valued map reads return, the way Redis flattens hash values.
func stringifyHash(fields map[string]any) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}

func TestBanRecordRoundTrip(t *testing.T) {
	expires := time.UnixMilli(1735689600000)
	records := []Record{
		{Type: TypeSoft, Reason: "spam", BannedAt: time.UnixMilli(1700000000000), BannedBy: "admin"},
		{Type: TypeHard, Reason: "abuse", BannedAt: time.UnixMilli(1700000000001), BannedBy: "system", ExpiresAt: &expires},
		{Type: TypeHard, Reason: "scraper", BannedAt: time.UnixMilli(1700000000002), BannedBy: "admin", Pattern: "badbot/.*"},
	}

	for _, want := range records {
		got, ok := hashToBanRecord(stringifyHash(banRecordToHash(want)))
		if !ok {
			t.Fatalf("round-trip of %+v failed to decode", want)
		}
		if got.Type != want.Type || got.Reason != want.Reason || got.BannedBy != want.BannedBy || got.Pattern != want.Pattern {
			t.Errorf("round-trip mismatch: got %+v, want %+v", got, want)
		}
		if !got.BannedAt.Equal(want.BannedAt) {
			t.Errorf("bannedAt mismatch: got %v, want %v", got.BannedAt, want.BannedAt)
		}
		if (got.ExpiresAt == nil) != (want.ExpiresAt == nil) {
			t.Fatalf("expiresAt presence mismatch: got %v, want %v", got.ExpiresAt, want.ExpiresAt)
		}
		if got.ExpiresAt != nil && !got.ExpiresAt.Equal(*want.ExpiresAt) {
			t.Errorf("expiresAt mismatch: got %v, want %v", got.ExpiresAt, want.ExpiresAt)
		}
	}
}

func TestHashToBanRecord_MissingFields(t *testing.T) {
	full := stringifyHash(banRecordToHash(Record{
		Type: TypeSoft, Reason: "r", BannedAt: time.UnixMilli(1), BannedBy: "b",
	}))

	for _, missing := range []string{"type", "reason", "bannedAt", "bannedBy"} {
		fields := make(map[string]string, len(full))
		for k, v := range full {
			if k != missing {
				fields[k] = v
			}
		}
		if _, ok := hashToBanRecord(fields); ok {
			t.Errorf("expected decode failure with %q missing", missing)
		}
	}

	if _, ok := hashToBanRecord(map[string]string{}); ok {
		t.Error("expected decode failure for empty hash")
	}
}

func TestHashToBanRecord_BadBannedAt(t *testing.T) {
	fields := map[string]string{
		"type": "soft", "reason": "r", "bannedAt": "not-a-number", "bannedBy": "b",
	}
	if _, ok := hashToBanRecord(fields); ok {
		t.Error("expected decode failure for non-numeric bannedAt")
	}
}

func TestRecordExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	if (Record{}).Expired(now) {
		t.Error("record without expiry should never expire")
	}
	if (Record{ExpiresAt: &future}).Expired(now) {
		t.Error("record expiring in the future should not be expired")
	}
	if !(Record{ExpiresAt: &past}).Expired(now) {
		t.Error("record with past expiry should be expired")
	}
}

func TestUAEntryRoundTrip(t *testing.T) {
	expires := time.UnixMilli(1735689600000).UTC()
	entry := uaEntry{
		Pattern: "curl/.*", Type: TypeHard, Reason: "scripted abuse",
		BannedAt: time.UnixMilli(1700000000000).UTC(), BannedBy: "admin", ExpiresAt: &expires,
	}

	encoded, err := entry.marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, ok := unmarshalUAEntry(encoded)
	if !ok {
		t.Fatal("unmarshal failed")
	}
	if got.Pattern != entry.Pattern || got.Type != entry.Type || got.Reason != entry.Reason {
		t.Errorf("round-trip mismatch: got %+v, want %+v", got, entry)
	}

	if _, ok := unmarshalUAEntry("not json"); ok {
		t.Error("expected failure for malformed JSON")
	}
	if _, ok := unmarshalUAEntry(`{"type":"soft"}`); ok {
		t.Error("expected failure for entry without pattern")
	}
}
