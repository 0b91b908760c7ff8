package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusLogAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.jsonl")
	log, err := OpenStatusLog(path)
	require.NoError(t, err)

	now := time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(JobRecord{
		SessionID: "s1",
		JobType:   JobListingFetch,
		TargetURL: "https://ggstore.com/collections/all?page=1",
		Outcome:   OutcomeSuccess,
		Timestamp: now,
	}))
	require.NoError(t, log.Append(JobRecord{
		SessionID:    "s1",
		JobType:      JobDetailFetch,
		TargetURL:    "https://ggstore.com/products/broken",
		Outcome:      OutcomeFailed,
		ErrorKind:    "parse_error",
		ErrorMessage: "product name not found",
		Timestamp:    now,
	}))
	require.NoError(t, log.Close())

	// Re-opening appends rather than truncating.
	log, err = OpenStatusLog(path)
	require.NoError(t, err)
	require.NoError(t, log.Append(JobRecord{
		SessionID: "s2",
		JobType:   JobImageDownload,
		TargetURL: "https://ggstore.com/cdn/shop/files/a.jpg?v=1",
		Outcome:   OutcomeSkipped,
		Timestamp: now,
	}))
	require.NoError(t, log.Close())

	records, err := ReadStatusLog(path)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, JobListingFetch, records[0].JobType)
	assert.Equal(t, "s2", records[2].SessionID)

	failures := FilterErrors(records)
	require.Len(t, failures, 1)
	assert.Equal(t, "parse_error", failures[0].ErrorKind)
	assert.Equal(t, "https://ggstore.com/products/broken", failures[0].TargetURL)
}

func TestReadStatusLogMissingFile(t *testing.T) {
	records, err := ReadStatusLog(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)

	sessions, err := ReadSessions(filepath.Join(t.TempDir(), "absent.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestStatusLogSessionProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.jsonl")
	log, err := OpenStatusLog(path)
	require.NoError(t, err)

	started := time.Date(2025, 11, 2, 12, 0, 0, 0, time.UTC)
	require.NoError(t, log.Append(JobRecord{
		SessionID: "s1",
		JobType:   JobDetailFetch,
		TargetURL: "https://ggstore.com/products/case",
		Outcome:   OutcomeSuccess,
		Timestamp: started,
	}))
	require.NoError(t, log.AppendProgress(SessionProgress{
		SessionID:          "s1",
		StartedAt:          started,
		FinishedAt:         started.Add(time.Minute),
		ProductsDiscovered: 12,
		ProductsCrawled:    10,
		ProductsSkipped:    1,
		ProductsFailed:     1,
		ImagesDownloaded:   25,
		ImagesFailed:       2,
	}))
	require.NoError(t, log.Close())

	// Job readers skip the session line; session readers skip job lines.
	records, err := ReadStatusLog(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, JobDetailFetch, records[0].JobType)

	sessions, err := ReadSessions(path)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, 12, sessions[0].ProductsDiscovered)
	assert.Equal(t, 25, sessions[0].ImagesDownloaded)
	assert.Equal(t, started.Add(time.Minute), sessions[0].FinishedAt.UTC())
}
