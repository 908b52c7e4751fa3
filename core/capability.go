package core

import (
	"slices"
	"strings"
)

// DefaultCapabilityVersion is assumed for tags without a version.
const DefaultCapabilityVersion = "1.0.0"

const capabilityVersionSep = "@"

// Capability is a named, versioned capability. Its tag form is
// "name@version", which is what identities and presence records carry.
type Capability struct {
	Name    string
	Version string
}

// NewCapability returns a capability, defaulting an empty version.
func NewCapability(name, version string) Capability {
	if version == "" {
		version = DefaultCapabilityVersion
	}
	return Capability{Name: name, Version: version}
}

// ParseCapability splits a tag into name and version. A tag without a
// version keeps an empty Version.
func ParseCapability(tag string) Capability {
	name, version, _ := strings.Cut(tag, capabilityVersionSep)
	return Capability{Name: name, Version: version}
}

// String returns the tag form.
func (c Capability) String() string {
	if c.Version == "" {
		return c.Name
	}
	return c.Name + capabilityVersionSep + c.Version
}

// Tags converts capabilities to their tag form, for NewIdentity.
func Tags(caps ...Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = c.String()
	}
	return out
}

// matchCapability reports whether query matches one of tags. A query
// without a version matches any version of the name.
func matchCapability(tags []string, query string) bool {
	if slices.Contains(tags, query) {
		return true
	}
	if strings.Contains(query, capabilityVersionSep) {
		return false
	}
	return slices.ContainsFunc(tags, func(tag string) bool {
		return ParseCapability(tag).Name == query
	})
}
