package archive

// MergeByID overlays incoming on existing: a record whose id already exists
// replaces it in place, new ids are appended in incoming order. Records with
// id 0 are dropped.
func MergeByID[T any](existing, incoming []T, id func(T) uint) []T {
	pos := make(map[uint]int, len(existing)+len(incoming))
	out := make([]T, 0, len(existing)+len(incoming))
	for _, list := range [][]T{existing, incoming} {
		for _, rec := range list {
			k := id(rec)
			if k == 0 {
				continue
			}
			if i, ok := pos[k]; ok {
				out[i] = rec
				continue
			}
			pos[k] = len(out)
			out = append(out, rec)
		}
	}
	return out
}

func productID(p Product) uint { return p.ID }
func postID(p Post) uint       { return p.ID }
func userID(u User) uint       { return u.ID }
