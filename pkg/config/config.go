// Package config loads named link profiles from an .ini file, the same
// way gocanopen's pkg/od parses an EDS file section by section with
// gopkg.in/ini.v1, except each section here names a T=1' link instead
// of an object dictionary entry.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/nbtgo/t1prime/pkg/t1prime"
)

// Profile holds the link parameters for one named configuration: which
// driver to construct, its address string, and the protocol defaults
// to apply before activation.
type Profile struct {
	Driver     string
	Address    string
	IFSD       int
	BWT        uint16
	MPOT       uint8
	PWT        uint8
	RetryLimit uint8
}

// DefaultProfile returns the link defaults: the virtual driver, IFSD
// 254, BWT 300ms, and pkg/t1prime's default MPOT, PWT and retry limit.
func DefaultProfile() Profile {
	return Profile{
		Driver:     "virtual",
		IFSD:       t1prime.DefaultIFS,
		BWT:        t1prime.DefaultBWT,
		MPOT:       t1prime.DefaultMPOT,
		PWT:        t1prime.DefaultPWT,
		RetryLimit: t1prime.DefaultRetryLimit,
	}
}

// LoadProfiles parses path, one Profile per section. Unset keys in a
// section fall back to DefaultProfile's values.
func LoadProfiles(path string) (map[string]Profile, error) {
	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("t1prime/config: %w", err)
	}

	profiles := make(map[string]Profile)
	for _, section := range file.Sections() {
		name := section.Name()
		if name == ini.DefaultSection {
			continue
		}
		profiles[name] = sectionToProfile(section)
	}
	return profiles, nil
}

func sectionToProfile(section *ini.Section) Profile {
	p := DefaultProfile()
	if section.HasKey("Driver") {
		p.Driver = section.Key("Driver").String()
	}
	if section.HasKey("Address") {
		p.Address = section.Key("Address").String()
	}
	if section.HasKey("IFSD") {
		p.IFSD = section.Key("IFSD").MustInt(p.IFSD)
	}
	if section.HasKey("BWT") {
		p.BWT = uint16(section.Key("BWT").MustInt(int(p.BWT)))
	}
	if section.HasKey("MPOT") {
		p.MPOT = uint8(section.Key("MPOT").MustInt(int(p.MPOT)))
	}
	if section.HasKey("PWT") {
		p.PWT = uint8(section.Key("PWT").MustInt(int(p.PWT)))
	}
	if section.HasKey("RetryLimit") {
		p.RetryLimit = uint8(section.Key("RetryLimit").MustInt(int(p.RetryLimit)))
	}
	return p
}
