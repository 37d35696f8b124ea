package aws

import (
	"github.com/yairfalse/autotag/pkg/resource"
)

// convertTags maps any SDK tag slice into resource tags, keeping provider order.
// The result is never nil so an untagged resource serializes as [].
func convertTags[T any](in []T, kv func(T) (*string, *string)) []resource.Tag {
	out := make([]resource.Tag, 0, len(in))
	for _, t := range in {
		k, v := kv(t)
		out = append(out, resource.Tag{Key: deref(k), Value: deref(v)})
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// nameTag returns the value of the Name tag, if any.
func nameTag(tags []resource.Tag) string {
	for _, t := range tags {
		if t.Key == "Name" {
			return t.Value
		}
	}
	return ""
}

// mergeTag sets tag in tags, replacing an existing value for the same key.
func mergeTag(tags []resource.Tag, tag resource.Tag) []resource.Tag {
	out := make([]resource.Tag, 0, len(tags)+1)
	replaced := false
	for _, t := range tags {
		if t.Key == tag.Key {
			out = append(out, tag)
			replaced = true
			continue
		}
		out = append(out, t)
	}
	if !replaced {
		out = append(out, tag)
	}
	return out
}
