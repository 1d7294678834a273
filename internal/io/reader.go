package io

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/williampepple1/post-crawler/internal/jobapi"
)

// TargetReader reads the account to URL mapping from a YAML or JSON file.
// The file is either a mapping of account to URL list, or the list of
// {username, postsLinks} entries the link job writes.
type TargetReader struct {
	File string
}

// NewTargetReader creates a new target reader
func NewTargetReader(file string) *TargetReader {
	return &TargetReader{
		File: file,
	}
}

// Targets reads and normalizes the file
func (r *TargetReader) Targets(ctx context.Context) (map[string][]string, error) {
	data, err := os.ReadFile(r.File)
	if err != nil {
		return nil, err
	}
	return ParseTargets(data)
}

// ParseTargets parses either accepted shape, skipping blank and # entries
func ParseTargets(data []byte) (map[string][]string, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("parse targets: %w", err)
	}
	if len(node.Content) == 0 {
		return map[string][]string{}, nil
	}

	var raw map[string][]string
	switch node.Content[0].Kind {
	case yaml.MappingNode:
		if err := node.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parse targets: %w", err)
		}
	case yaml.SequenceNode:
		var links []jobapi.AccountLinks
		if err := node.Decode(&links); err != nil {
			return nil, fmt.Errorf("parse targets: %w", err)
		}
		raw = jobapi.ToTargets(links)
	default:
		return nil, fmt.Errorf("parse targets: expected a mapping or a list")
	}

	targets := make(map[string][]string, len(raw))
	for account, urls := range raw {
		if strings.TrimSpace(account) == "" {
			return nil, fmt.Errorf("parse targets: empty account name")
		}
		for _, url := range urls {
			url = strings.TrimSpace(url)
			if url != "" && !strings.HasPrefix(url, "#") {
				targets[account] = append(targets[account], url)
			}
		}
	}

	return targets, nil
}
