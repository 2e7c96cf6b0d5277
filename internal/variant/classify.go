package variant

import "regexp"

// Class is the outcome of classifying a marker identifier by naming convention.
type Class int

const (
	// ClassUnknown means the identifier does not follow a recognised
	// convention, so non-SNP status cannot be confirmed.
	ClassUnknown Class = iota
	// ClassSNP means the identifier encodes single-base REF and ALT alleles.
	ClassSNP
	// ClassNonSNP means the identifier encodes an indel or other multi-base allele.
	ClassNonSNP
)

func (c Class) String() string {
	switch c {
	case ClassSNP:
		return "snp"
	case ClassNonSNP:
		return "non-snp"
	}
	return "unknown"
}

// epactsIDPattern matches EPACTS marker IDs: CHR:POS_REF/ALT with an optional
// _SUFFIX (usually an rsID), and the colon-delimited CHR:POS:REF:ALT form.
var epactsIDPattern = regexp.MustCompile(`^(?:chr)?[0-9A-Za-z_.]+?:\d+(?:_([^/_:]+)/([^/_:]+)(?:_.*)?|:([^:]+):([^:]+))$`)

// Classify reports whether marker names a SNP according to the EPACTS
// identifier convention. Identifiers that don't match return ClassUnknown.
func Classify(marker string) Class {
	m := epactsIDPattern.FindStringSubmatch(marker)
	if m == nil {
		return ClassUnknown
	}

	ref, alt := m[1], m[2]
	if ref == "" && alt == "" {
		ref, alt = m[3], m[4]
	}

	if isBase(ref) && isBase(alt) {
		return ClassSNP
	}
	return ClassNonSNP
}

// isBase returns true for a single-letter allele. Placeholders such as "-",
// "." and "*" denote missing or spanning alleles and are not bases.
func isBase(allele string) bool {
	if len(allele) != 1 {
		return false
	}
	c := allele[0] | 0x20
	return c >= 'a' && c <= 'z'
}
