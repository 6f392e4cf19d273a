package odoo

// record is one row of a search_read/read result. Odoo returns false for
// empty scalar fields and [id, "Display Name"] pairs for many2one fields;
// the accessors below normalize both.
type record map[string]any

func (r record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r record) num(key string) float64 {
	f, _ := r[key].(float64)
	return f
}

func (r record) intval(key string) int {
	return int(r.num(key))
}

func (r record) many2oneName(key string) string {
	pair, ok := r[key].([]any)
	if !ok || len(pair) < 2 {
		return ""
	}
	s, _ := pair[1].(string)
	return s
}

// idList reads a one2many field, which arrives as a plain list of ids.
func (r record) idList(key string) []int {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	ids := make([]int, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(float64); ok {
			ids = append(ids, int(f))
		}
	}
	return ids
}

func (r record) many2oneID(key string) int {
	pair, ok := r[key].([]any)
	if !ok || len(pair) < 1 {
		return 0
	}
	f, _ := pair[0].(float64)
	return int(f)
}
