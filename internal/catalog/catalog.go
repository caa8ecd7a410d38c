// Package catalog loads the signature catalog: vendor fingerprints, known
// default credentials, and observation-pattern match rules. The catalog is
// loaded once at process start and read-only afterwards.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/kroeungcyber/iotscan/internal/domain"
)

// Credential is one well-known default username/password pair.
type Credential struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Vendor is a device manufacturer fingerprint entry.
type Vendor struct {
	Ports       []uint16     `yaml:"ports,omitempty"`
	Credentials []Credential `yaml:"default_credentials,omitempty"`
	CVEs        []string     `yaml:"cves,omitempty"`
	RTSPPaths   []string     `yaml:"rtsp_paths,omitempty"`
	WebPaths    []string     `yaml:"web_paths,omitempty"`
}

type document struct {
	Vendors    map[string]Vendor  `yaml:"vendors"`
	Signatures []domain.Signature `yaml:"signatures"`
}

// Catalog is the immutable lookup table handed to probes and the
// correlator.
type Catalog struct {
	vendors    map[string]Vendor
	vendorList []string
	signatures map[domain.ObservationKind][]domain.Signature
	byID       map[string]domain.Signature
}

// Load reads a YAML catalog file. A missing file falls back to the
// built-in defaults with a warning; malformed entries are skipped with a
// warning, never fatal.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Warn("Signature catalog not found, using built-in defaults")
			return Default(), nil
		}
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return build(doc), nil
}

// Default returns the compiled-in catalog used when no file is supplied.
func Default() *Catalog {
	return build(defaultDocument())
}

func build(doc document) *Catalog {
	c := &Catalog{
		vendors:    make(map[string]Vendor),
		signatures: make(map[domain.ObservationKind][]domain.Signature),
		byID:       make(map[string]domain.Signature),
	}

	for name, vendor := range doc.Vendors {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			log.Warn("Skipping vendor entry with empty name")
			continue
		}
		c.vendors[key] = vendor
		c.vendorList = append(c.vendorList, key)
	}
	sort.Strings(c.vendorList)

	for _, sig := range doc.Signatures {
		if sig.ID == "" {
			log.Warn("Skipping signature with empty id")
			continue
		}
		if !sig.Severity.Valid() {
			log.WithFields(log.Fields{"signature": sig.ID, "severity": sig.Severity}).
				Warn("Skipping signature with unknown severity")
			continue
		}
		if err := sig.Match.Compile(); err != nil {
			log.WithFields(log.Fields{"signature": sig.ID, "error": err}).
				Warn("Skipping signature with invalid match rule")
			continue
		}
		if _, dup := c.byID[sig.ID]; dup {
			log.WithField("signature", sig.ID).Warn("Skipping duplicate signature id")
			continue
		}
		c.byID[sig.ID] = sig
		c.signatures[sig.Match.Kind] = append(c.signatures[sig.Match.Kind], sig)
	}

	return c
}

// SignaturesFor returns the signatures applicable to an observation kind.
func (c *Catalog) SignaturesFor(kind domain.ObservationKind) []domain.Signature {
	return c.signatures[kind]
}

// Signature looks up a catalog entry by issue id.
func (c *Catalog) Signature(id string) (domain.Signature, bool) {
	sig, ok := c.byID[id]
	return sig, ok
}

// Vendors lists the known vendor names in stable order.
func (c *Catalog) Vendors() []string {
	return c.vendorList
}

// Vendor looks up one vendor fingerprint by name (case-insensitive).
func (c *Catalog) Vendor(name string) (Vendor, bool) {
	v, ok := c.vendors[strings.ToLower(name)]
	return v, ok
}

// DefaultCredentials aggregates the fixed default-credential list across
// all vendors, first occurrence wins, vendor order stable. This is the
// complete and only list the credential probe may try.
func (c *Catalog) DefaultCredentials() []Credential {
	seen := make(map[string]struct{})
	var out []Credential
	for _, name := range c.vendorList {
		for _, cred := range c.vendors[name].Credentials {
			key := cred.Username + "\x00" + cred.Password
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, cred)
		}
	}
	return out
}

// CredentialsFor returns vendor-specific credentials when the hint names a
// known vendor, the aggregate list otherwise.
func (c *Catalog) CredentialsFor(vendorHint string) []Credential {
	if v, ok := c.Vendor(vendorHint); ok && len(v.Credentials) > 0 {
		return v.Credentials
	}
	return c.DefaultCredentials()
}

// RTSPPaths aggregates the vendor RTSP playback paths, deduplicated in
// stable vendor order.
func (c *Catalog) RTSPPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range c.vendorList {
		for _, p := range c.vendors[name].RTSPPaths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// WebPaths aggregates the vendor web interface paths in stable order.
func (c *Catalog) WebPaths() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, name := range c.vendorList {
		for _, p := range c.vendors[name].WebPaths {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// VendorFor matches a banner or hint string against the vendor table.
func (c *Catalog) VendorFor(text string) string {
	lowered := strings.ToLower(text)
	for _, name := range c.vendorList {
		if strings.Contains(lowered, name) {
			return name
		}
	}
	return ""
}
