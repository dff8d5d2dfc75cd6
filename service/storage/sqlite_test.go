package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "assessment.db")
	svc, err := NewSQLite(dbPath)
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func row(pk, sk, jobID string, extra map[string]any) Item {
	item := Item{"PartitionKey": pk, "SortKey": sk, "JobId": jobID}
	for k, v := range extra {
		item[k] = v
	}
	return item
}

func TestSQLitePutGetDelete(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutItem(ctx, row("jobs", "TRUSTED_ACCESS#1", "1", map[string]any{"JobStatus": "ACTIVE"})))
	require.NoError(t, s.PutItem(ctx, row("jobs", "TRUSTED_ACCESS#1", "1", map[string]any{"JobStatus": "SUCCEEDED"})))

	item, err := s.GetItem(ctx, Key{PartitionKey: "jobs", SortKey: "TRUSTED_ACCESS#1"})
	require.NoError(t, err)
	assert.Equal(t, "SUCCEEDED", item["JobStatus"])

	require.NoError(t, s.DeleteItem(ctx, Key{PartitionKey: "jobs", SortKey: "TRUSTED_ACCESS#1"}))
	item, err = s.GetItem(ctx, Key{PartitionKey: "jobs", SortKey: "TRUSTED_ACCESS#1"})
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestSQLiteRejectsItemsWithoutKeys(t *testing.T) {
	s := newTestSQLite(t)
	err := s.PutItems(context.Background(), []Item{{"PartitionKey": "jobs"}})
	assert.Error(t, err)
}

func TestSQLiteQueryByPartitionAndPrefix(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutItems(ctx, []Item{
		row("Policies", "s3#111#us-east-1#b1#aws:PrincipalOrgID#o-1", "job-a", nil),
		row("Policies", "sqs#111#us-east-1#q1#aws:PrincipalOrgID#o-1", "job-a", nil),
		row("Policies", "s3#222#us-east-1#b2#aws:PrincipalOrgID#o-1", "job-b", nil),
		row("jobs", "RESOURCE_BASED_POLICY#job-a", "job-a", nil),
	}))

	page, err := s.Query(ctx, Query{PartitionKey: "Policies"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)
	assert.Nil(t, page.LastKey)

	page, err = s.Query(ctx, Query{PartitionKey: "Policies", SortKeyPrefix: "s3#"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = s.Query(ctx, Query{JobID: "job-a", PartitionKey: "Policies"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	page, err = s.Query(ctx, Query{JobID: "job-a"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 3)

	_, err = s.Query(ctx, Query{})
	assert.Error(t, err)
}

func TestSQLiteQueryPaging(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	var items []Item
	for i := 0; i < 5; i++ {
		items = append(items, row("ResourceBasedPolicy", fmt.Sprintf("us-east-1#s3#111#b%d#statement0", i), "", nil))
	}
	require.NoError(t, s.PutItems(ctx, items))

	q := Query{PartitionKey: "ResourceBasedPolicy", Limit: 2}
	var seen []string
	pages := 0
	for {
		page, err := s.Query(ctx, q)
		require.NoError(t, err)
		pages++
		for _, item := range page.Items {
			seen = append(seen, item["SortKey"].(string))
		}
		if page.LastKey == nil {
			break
		}
		token := EncodeCursor(page.LastKey)
		q.StartKey, err = DecodeCursor(token)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 5)
	assert.IsIncreasing(t, seen)

	all, err := QueryAll(ctx, s, Query{PartitionKey: "ResourceBasedPolicy", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestSQLiteContainsFilter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.PutItems(ctx, []Item{
		row("ResourceBasedPolicy", "us-east-1#s3#111#b1#statement0", "", map[string]any{"Action": `["s3:GetObject"]`, "Effect": "Allow"}),
		row("ResourceBasedPolicy", "us-east-1#s3#111#b2#statement0", "", map[string]any{"Action": `"sqs:SendMessage"`, "Effect": "Deny"}),
	}))

	page, err := s.Query(ctx, Query{
		PartitionKey:  "ResourceBasedPolicy",
		SortKeyPrefix: "us-east-1#",
		Contains:      []Filter{{Attribute: "Action", Value: "s3:Get"}},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Allow", page.Items[0]["Effect"])

	page, err = s.Query(ctx, Query{
		PartitionKey: "ResourceBasedPolicy",
		Contains:     []Filter{{Attribute: "Principal", Value: "anything"}},
	})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestSQLiteExpiry(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.PutItems(ctx, []Item{
		row("jobs", "A#expired", "", map[string]any{"ExpiresAt": float64(now.Add(-time.Hour).Unix())}),
		row("jobs", "A#live", "", map[string]any{"ExpiresAt": float64(now.Add(time.Hour).Unix())}),
		row("jobs", "A#forever", "", nil),
	}))

	page, err := s.Query(ctx, Query{PartitionKey: "jobs"})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)

	item, err := s.GetItem(ctx, Key{PartitionKey: "jobs", SortKey: "A#expired"})
	require.NoError(t, err)
	assert.Nil(t, item)

	purged, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	require.NoError(t, s.Vacuum(ctx))
}

func TestEncodeDecode(t *testing.T) {
	type job struct {
		PartitionKey string `json:"PartitionKey"`
		SortKey      string `json:"SortKey"`
		ExpiresAt    int64  `json:"ExpiresAt"`
		Region       *string
	}
	in := job{PartitionKey: "jobs", SortKey: "A#1", ExpiresAt: 1767225600}
	item, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, int64(1767225600), expiresAtOf(item))
	assert.Contains(t, item, "Region")

	var out job
	require.NoError(t, Decode(item, &out))
	assert.Equal(t, in, out)
}

func TestCursorRejectsGarbage(t *testing.T) {
	_, err := DecodeCursor("not base64!")
	assert.Error(t, err)
	_, err = DecodeCursor("e30=") // {}
	assert.Error(t, err)
	key, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Nil(t, key)
}
