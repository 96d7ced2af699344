package kvs

// BuildOptions carries the run-wide attributes applied to every entry.
type BuildOptions struct {
	Label       Label
	Prefix      string
	Tags        map[string]string
	ContentType string
}

// Scope returns the scope that entries built with these options fall into.
func (o BuildOptions) Scope() Scope {
	return Scope{Prefix: o.Prefix, Label: o.Label}
}

// BuildDesired turns the flattened configuration into the entries the run
// wants to exist. Order follows pairs. If two pairs map to the same key the
// later value wins and keeps the position of the first.
func BuildDesired(pairs []KeyValue, opts BuildOptions) []Entry {
	entries := make([]Entry, 0, len(pairs))
	index := make(map[string]int, len(pairs))

	for _, kv := range pairs {
		e := Entry{
			Key:         opts.Prefix + kv.Key,
			Value:       CoerceAny(kv.Value),
			Label:       opts.Label,
			Tags:        opts.Tags,
			ContentType: opts.ContentType,
		}
		if i, ok := index[e.Key]; ok {
			entries[i] = e
			continue
		}
		index[e.Key] = len(entries)
		entries = append(entries, e)
	}

	return entries
}
