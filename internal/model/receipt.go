package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"time"
)

// ClassificationStatus indicates how a receipt was categorized.
type ClassificationStatus string

// Classification status constants.
const (
	StatusPending          ClassificationStatus = "PENDING"
	StatusUnclassified     ClassificationStatus = "UNCLASSIFIED"
	StatusClassifiedByRule ClassificationStatus = "CLASSIFIED_BY_RULE"
	StatusUserModified     ClassificationStatus = "USER_MODIFIED"
)

// Receipt is a stored receipt: the extracted field bag plus the attributes
// classification has assigned so far.
type Receipt struct {
	CreatedAt     time.Time
	ClassifiedAt  *time.Time
	RuleID        *int64
	Fields        FieldBag
	Attributes    map[Attribute]string
	ID            string
	Hash          string
	Status        ClassificationStatus
	ArchivePath   string
	ArchiveNumber string
	Tags          []string
}

// GenerateHash creates a content hash for duplicate detection.
func (r *Receipt) GenerateHash() string {
	raw := r.Fields.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		_, _ = fmt.Fprintf(h, "%s=%s\n", k, raw[k])
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Apply merges a directive into the receipt. Tags are unioned; the archive
// number is assigned separately because it comes from the sequence generator.
func (r *Receipt) Apply(d Directive) {
	if len(d.Assignments) > 0 && r.Attributes == nil {
		r.Attributes = make(map[Attribute]string, len(d.Assignments))
	}
	for attr, v := range d.Assignments {
		r.Attributes[attr] = v
	}

	seen := make(map[string]bool, len(r.Tags)+len(d.Tags))
	merged := make([]string, 0, len(r.Tags)+len(d.Tags))
	for _, t := range append(append([]string(nil), r.Tags...), d.Tags...) {
		if seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	sort.Strings(merged)
	r.Tags = merged

	if se, ok := d.SideEffect(SideEffectArchive); ok {
		r.ArchivePath = se.Value
	}
}
