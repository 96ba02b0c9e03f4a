package docstore

import (
	"fmt"
	"strings"
)

const (
	CollectionConfig     = "config"
	CollectionStudents   = "students"
	CollectionAttendance = "attendance"
	CollectionLeaves     = "leaves"

	ConfigDocID = "main"
)

// Paths builds the paths of one application's data tree.
type Paths struct {
	Root string
}

func NewPaths(appID string) Paths {
	return Paths{Root: Join("artifacts", appID, "public", "data")}
}

func (p Paths) Collection(name string) string {
	return Join(p.Root, name)
}

func (p Paths) Doc(collection, id string) string {
	return Join(p.Root, collection, id)
}

func (p Paths) Config() string     { return p.Doc(CollectionConfig, ConfigDocID) }
func (p Paths) Students() string   { return p.Collection(CollectionStudents) }
func (p Paths) Attendance() string { return p.Collection(CollectionAttendance) }
func (p Paths) Leaves() string     { return p.Collection(CollectionLeaves) }

func (p Paths) Student(studentID string) string {
	return p.Doc(CollectionStudents, studentID)
}

func Join(parts ...string) string {
	return strings.Join(parts, "/")
}

func split(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" || s == "." || s == ".." {
			return nil, fmt.Errorf("%w: bad segment in %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// SplitDoc splits a document path into its collection path and document id.
func SplitDoc(path string) (collection, id string, err error) {
	segs, err := split(path)
	if err != nil {
		return "", "", err
	}
	if len(segs)%2 != 0 {
		return "", "", fmt.Errorf("%w: %q is not a document path", ErrInvalidPath, path)
	}
	return Join(segs[:len(segs)-1]...), segs[len(segs)-1], nil
}

// CleanCollection validates a collection path and returns it without stray slashes.
func CleanCollection(path string) (string, error) {
	segs, err := split(path)
	if err != nil {
		return "", err
	}
	if len(segs)%2 != 1 {
		return "", fmt.Errorf("%w: %q is not a collection path", ErrInvalidPath, path)
	}
	return Join(segs...), nil
}
