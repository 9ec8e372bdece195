package dumpdate

import "regexp"

// anchorPattern matches one directory entry of the listing page. Go's regexp
// has no backreferences, so the href/text equality is checked in ExtractDates.
var anchorPattern = regexp.MustCompile(`<a href="(\d{8})/">(\d{8})</a>`)

// ExtractDates returns every dump date listed on a directory listing page, in
// page order. Only anchors of the exact shape <a href="YYYYMMDD/">YYYYMMDD</a>
// with identical href and text are accepted; anything else, including digit
// strings that are not calendar dates, is skipped.
//
// The listing markup is not a documented interface of the dump server. If
// its shape changes this returns nothing and resolution fails with
// ErrNoDumpFound rather than guessing.
func ExtractDates(page []byte) []Date {
	var dates []Date
	for _, m := range anchorPattern.FindAllSubmatch(page, -1) {
		if string(m[1]) != string(m[2]) {
			continue
		}
		d, err := Parse(string(m[1]))
		if err != nil {
			continue
		}
		dates = append(dates, d)
	}
	return dates
}
