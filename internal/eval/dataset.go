// Package eval measures retrieval quality of search strategies against a
// labeled dataset of queries and relevant documents.
package eval

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// RelevantDoc labels one document as relevant to a test case. DocID is the
// canonical "doctype:meeting:source" id; Relevance is the graded relevance
// used by NDCG, where absent or zero counts as 1.
type RelevantDoc struct {
	DocID     string `json:"doc_id"`
	Relevance int    `json:"relevance,omitempty"`
}

// TestCase is one labeled query.
type TestCase struct {
	ID       string        `json:"id"`
	Query    string        `json:"query"`
	OrgID    string        `json:"org_id,omitempty"`
	Tags     []string      `json:"tags,omitempty"`
	Relevant []RelevantDoc `json:"relevant_docs"`
}

// grades maps canonical doc ids to relevance grades.
func (c TestCase) grades() map[string]int {
	g := make(map[string]int, len(c.Relevant))
	for _, doc := range c.Relevant {
		grade := doc.Relevance
		if grade <= 0 {
			grade = 1
		}
		g[doc.DocID] = grade
	}
	return g
}

// Dataset is a named collection of test cases.
type Dataset struct {
	Name  string     `json:"name"`
	Cases []TestCase `json:"test_cases"`
}

// Load reads a dataset from a JSON file. A dataset without a name takes the
// file's base name.
func Load(path string) (Dataset, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Dataset{}, fmt.Errorf("read dataset %s: %w", path, err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return Dataset{}, fmt.Errorf("parse dataset %s: %w", path, err)
	}
	if ds.Name == "" {
		base := filepath.Base(path)
		ds.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	for i, c := range ds.Cases {
		if c.ID == "" {
			ds.Cases[i].ID = fmt.Sprintf("case-%d", i+1)
		}
		if strings.TrimSpace(c.Query) == "" {
			return Dataset{}, fmt.Errorf("dataset %s: case %d has an empty query", ds.Name, i+1)
		}
	}
	return ds, nil
}

// Limit returns a copy restricted to the first n cases. n <= 0 keeps all.
func (d Dataset) Limit(n int) Dataset {
	if n <= 0 || n >= len(d.Cases) {
		return d
	}
	return Dataset{Name: d.Name, Cases: d.Cases[:n]}
}
