// Package merge reconciles a fresh crawl with the persisted result set.
package merge

import "github.com/williampepple1/post-crawler/pkg/models"

// Merge appends fresh after previous. A nil previous yields the records of
// fresh. Records are never deduplicated: crawling a URL twice stores it twice.
// The result is a new slice; neither input is modified or shared.
func Merge(previous *models.ResultSet, fresh models.ResultSet) models.ResultSet {
	var old []models.ExtractedRecord
	if previous != nil {
		old = previous.Posts
	}

	posts := make([]models.ExtractedRecord, 0, len(old)+len(fresh.Posts))
	posts = append(posts, old...)
	posts = append(posts, fresh.Posts...)
	return models.ResultSet{Posts: posts}
}
