package kvs

// noLabelFilter is the store's label filter syntax for "entries with no label".
const noLabelFilter = "\x00"

// Label scopes an entry. The zero value is NoLabel, which is distinct from
// every real label string including the empty one.
type Label struct {
	name string
	set  bool
}

// NoLabel is the unlabelled scope.
var NoLabel = Label{}

// LabelOf returns a real label. An empty name means NoLabel.
func LabelOf(name string) Label {
	if name == "" {
		return NoLabel
	}
	return Label{name: name, set: true}
}

// Name returns the label name and whether a label is set.
func (l Label) Name() (string, bool) {
	return l.name, l.set
}

// IsSet reports whether l is a real label.
func (l Label) IsSet() bool { return l.set }

// String renders the label for messages; NoLabel renders as "".
func (l Label) String() string { return l.name }

// KeyValue is one pair of the flattened configuration, in source order.
type KeyValue struct {
	Key   string
	Value any
}

// Entry is a single setting the sync wants to exist in the store.
type Entry struct {
	Key         string
	Value       string
	Label       Label
	Tags        map[string]string
	ContentType string
}

// RemoteEntry is a setting as returned by a store listing. Deletes are
// issued with the RemoteEntry exactly as listed.
type RemoteEntry struct {
	Key         string
	Value       string
	Label       Label
	Tags        map[string]string
	ContentType string
	ReadOnly    bool
	ETag        string

	// StoredKey is the key exactly as the store returned it, for stores
	// whose key encoding does not round trip. Empty when the store keys
	// entries by Key and Label.
	StoredKey string
}

// Filter is the store-level listing filter. KeyFilter uses a trailing "*"
// as a prefix wildcard; an empty KeyFilter matches every key. LabelFilter
// "\x00" matches only unlabelled entries and an empty LabelFilter matches
// any label.
type Filter struct {
	KeyFilter   string
	LabelFilter string
}

// Scope bounds which remote entries a run owns.
type Scope struct {
	Prefix string
	Label  Label
}

// Filter translates the scope into the store's filter syntax.
func (s Scope) Filter() Filter {
	f := Filter{LabelFilter: noLabelFilter}
	if s.Prefix != "" {
		f.KeyFilter = s.Prefix + "*"
	}
	if name, ok := s.Label.Name(); ok {
		f.LabelFilter = name
	}
	return f
}

// Contains reports whether a remote entry falls inside the scope.
func (s Scope) Contains(e RemoteEntry) bool {
	return s.Filter().Matches(e.Key, e.Label)
}

// Matches reports whether an identity passes the filter.
func (f Filter) Matches(key string, label Label) bool {
	if f.KeyFilter != "" {
		if n := len(f.KeyFilter); f.KeyFilter[n-1] == '*' {
			p := f.KeyFilter[:n-1]
			if len(key) < len(p) || key[:len(p)] != p {
				return false
			}
		} else if key != f.KeyFilter {
			return false
		}
	}
	switch f.LabelFilter {
	case "":
		return true
	case noLabelFilter:
		return !label.IsSet()
	}
	name, ok := label.Name()
	return ok && name == f.LabelFilter
}

// MatchesNoLabel reports whether the filter selects unlabelled entries only.
func (f Filter) MatchesNoLabel() bool { return f.LabelFilter == noLabelFilter }

// Data holds all entries for a single run.
type Data struct {
	Entries []Entry
}

// SyncPlan describes what operations are needed to bring the store to the desired state.
type SyncPlan struct {
	Deletes []RemoteEntry // Entries to remove, in listing order
	Puts    []Entry       // Entries to upsert, in desired order
}
