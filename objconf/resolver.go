package objconf

import (
	"github.com/tangkong/hutch-python/device"
)

// Resolve returns the ordered sub-sequence of directive blocks that apply
// to the given object: blocks whose matcher equals the object's name or
// its class name. Name matches and class matches are both included in
// file order without deduplication, so a block whose matcher happens to
// equal both applies once per occurrence in the file.
//
// Matching is by exact name and exact class name only; ancestor classes
// are not expanded. Resolution never mutates input state.
func Resolve(directives []Directive, obj device.Object) []Directive {
	name, class := obj.Name(), obj.ClassName()

	var matched []Directive
	for _, d := range directives {
		if d.Matcher == name || d.Matcher == class {
			matched = append(matched, d)
		}
	}
	return matched
}
