package merge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williampepple1/post-crawler/pkg/models"
)

func record(account, url string) models.ExtractedRecord {
	return models.ExtractedRecord{Account: account, URL: url, PostText: "text " + url, Timestamp: "now"}
}

func TestMergeWithoutPrevious(t *testing.T) {
	fresh := models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u1"), record("bob", "u2")}}

	merged := Merge(nil, fresh)

	assert.Equal(t, fresh, merged)
}

func TestMergeAppendsAfterPrevious(t *testing.T) {
	previous := &models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u0")}}
	fresh := models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u1")}}

	merged := Merge(previous, fresh)

	assert.Equal(t, []models.ExtractedRecord{record("alice", "u0"), record("alice", "u1")}, merged.Posts)
}

func TestMergeKeepsDuplicates(t *testing.T) {
	previous := &models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u1"), record("bob", "u2")}}
	fresh := models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u1")}}

	merged := Merge(previous, fresh)

	require.Len(t, merged.Posts, 3)
	assert.Equal(t, previous.Posts, merged.Posts[:2])
	assert.Equal(t, fresh.Posts, merged.Posts[2:])
}

func TestMergeEmptyInputs(t *testing.T) {
	fresh := models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u1")}}

	assert.Equal(t, fresh.Posts, Merge(&models.ResultSet{}, fresh).Posts)
	assert.Empty(t, Merge(&models.ResultSet{}, models.ResultSet{}).Posts)

	previous := &models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u0")}}
	assert.Equal(t, previous.Posts, Merge(previous, models.ResultSet{}).Posts)
}

func TestMergeDoesNotAliasInputs(t *testing.T) {
	backing := make([]models.ExtractedRecord, 1, 8)
	backing[0] = record("alice", "u0")
	previous := &models.ResultSet{Posts: backing}
	fresh := models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u1")}}

	merged := Merge(previous, fresh)
	merged.Posts[0].PostText = "changed"

	assert.Len(t, previous.Posts, 1)
	assert.Equal(t, "text u0", previous.Posts[0].PostText)
	// spare capacity of previous must not have been written into
	assert.Equal(t, models.ExtractedRecord{}, backing[:2][1])
}

func TestMergeWithoutPreviousDoesNotShareFresh(t *testing.T) {
	fresh := models.ResultSet{Posts: []models.ExtractedRecord{record("alice", "u1")}}

	merged := Merge(nil, fresh)
	merged.Posts[0].PostText = "changed"

	assert.Equal(t, "text u1", fresh.Posts[0].PostText)
}

func TestMergeLengthProperty(t *testing.T) {
	for p := 0; p < 4; p++ {
		for f := 0; f < 4; f++ {
			previous := &models.ResultSet{}
			fresh := models.ResultSet{}
			for i := 0; i < p; i++ {
				previous.Posts = append(previous.Posts, record("a", "p"))
			}
			for i := 0; i < f; i++ {
				fresh.Posts = append(fresh.Posts, record("a", "f"))
			}

			merged := Merge(previous, fresh)

			require.Len(t, merged.Posts, p+f)
			for i, rec := range merged.Posts {
				if i < p {
					assert.Equal(t, "p", rec.URL)
				} else {
					assert.Equal(t, "f", rec.URL)
				}
			}
		}
	}
}
