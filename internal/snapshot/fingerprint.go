package snapshot

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// hashContent fingerprints a file's bytes
func hashContent(content []byte) string {
	return strconv.FormatUint(xxhash.Sum64(content), 16)
}

// fingerprintPackages assigns every package a fingerprint covering its own
// files, its manifest, and the fingerprints of the snapshot packages it imports.
// Packages must already have Files, Imports and Manifest populated.
func fingerprintPackages(pkgs []*Package) {
	byPath := make(map[string]*Package, len(pkgs))
	for _, p := range pkgs {
		byPath[p.Path] = p
	}

	visiting := make(map[string]bool)
	var visit func(p *Package) string
	visit = func(p *Package) string {
		if p.Fingerprint != "" {
			return p.Fingerprint
		}
		if visiting[p.Path] {
			// import cycles are rejected by the type checker; keep the walk finite
			return "cycle:" + p.Path
		}
		visiting[p.Path] = true
		defer delete(visiting, p.Path)

		d := xxhash.New()
		writeField(d, p.Path)
		writeField(d, p.Name)
		for _, f := range p.Files {
			writeField(d, f.Path)
			writeField(d, f.Hash)
		}
		for _, imp := range p.Imports {
			writeField(d, imp)
			if dep, ok := byPath[imp]; ok {
				writeField(d, visit(dep))
			}
		}
		for _, req := range p.Manifest.Requires {
			writeField(d, req)
		}
		for _, v := range p.Manifest.Versions {
			writeField(d, v)
		}
		p.Fingerprint = strconv.FormatUint(d.Sum64(), 16)
		return p.Fingerprint
	}

	for _, p := range pkgs {
		visit(p)
	}
}

// fingerprintSnapshot combines the assembly identity with every package fingerprint
func fingerprintSnapshot(s *Snapshot) string {
	d := xxhash.New()
	writeField(d, s.Assembly.Name)
	writeField(d, s.Assembly.Version)
	for _, p := range s.Packages {
		writeField(d, p.Path)
		writeField(d, p.Fingerprint)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func writeField(d *xxhash.Digest, s string) {
	_, _ = d.WriteString(s)
	_, _ = d.Write([]byte{0})
}
