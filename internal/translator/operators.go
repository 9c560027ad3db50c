package translator

// opKind is the dispatch discriminator for relational operators.
type opKind int

const (
	kindCompare opKind = iota // $eq, $ne, $lt, ... - infix comparison
	kindType                  // $type
	kindExists                // $exists
	kindInList                // $in, $nin
	kindSize                  // $size
	kindAll                   // $all
	kindAny                   // $any
	kindElemMatch             // $elemMatch
	kindFTS                   // $match
)

// opEntry maps an operator tag to its SQL fragment and dispatch kind.
type opEntry struct {
	tag   string
	sqlOp string
	kind  opKind
}

// Relational operators, appearing as object keys, e.g. {"$eq": 42}.
// Linear scan: 18 entries, a map buys nothing. Boolean combiners
// ($and/$or/$nor/$not) are handled by the predicate emitter and do not
// appear here.
var relationals = []opEntry{
	{"$eq", " = ", kindCompare},
	{"$ne", " <> ", kindCompare},
	{"$lt", " < ", kindCompare},
	{"$lte", " <= ", kindCompare},
	{"$le", " <= ", kindCompare},
	{"$gt", " > ", kindCompare},
	{"$gte", " >= ", kindCompare},
	{"$ge", " >= ", kindCompare},
	{"$like", " LIKE ", kindCompare},
	{"$type", "", kindType},
	{"$exists", "", kindExists},
	{"$in", " IN ", kindInList},
	{"$nin", " NOT IN ", kindInList},
	{"$size", "", kindSize},
	{"$all", "", kindAll},
	{"$any", "", kindAny},
	{"$elemMatch", "", kindElemMatch},
	{"$match", "", kindFTS},
}

// lookupOperator finds the table entry for an operator tag.
func lookupOperator(tag string) *opEntry {
	for i := range relationals {
		if relationals[i].tag == tag {
			return &relationals[i]
		}
	}
	return nil
}
