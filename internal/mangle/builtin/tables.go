package builtin

func in(name string) ArgSpec  { return ArgSpec{Name: name, Mode: ModeInput} }
func out(name string) ArgSpec { return ArgSpec{Name: name, Mode: ModeOutput} }

func pred(name, doc string, args ...ArgSpec) PredicateSpec {
	return PredicateSpec{Name: name, Arity: len(args), Args: args, Doc: doc}
}

func fn(name string, arity int, doc string) FunctionSpec {
	return FunctionSpec{Name: name, Arity: arity, Doc: doc}
}

func reducer(name string, arity int, doc string) FunctionSpec {
	return FunctionSpec{Name: name, Arity: arity, Reducer: true, Doc: doc}
}

// predicateTable and functionTable carry documentation and argument names.
// Names, arities and modes come from the upstream Mangle builtin package; see
// fromUpstream.
var predicateTable = []PredicateSpec{
	pred(":lt", "Holds when Left is less than Right.", in("Left"), in("Right")),
	pred(":le", "Holds when Left is less than or equal to Right.", in("Left"), in("Right")),
	pred(":gt", "Holds when Left is greater than Right.", in("Left"), in("Right")),
	pred(":ge", "Holds when Left is greater than or equal to Right.", in("Left"), in("Right")),
	pred(":filter", "Holds when the boolean expression evaluates to /true.", in("Cond")),
	pred(":match_prefix", "Holds when Name is a name constant below Prefix.", in("Name"), in("Prefix")),
	pred(":match_pair", "Destructures a pair into its components.", in("Pair"), out("Fst"), out("Snd")),
	pred(":match_cons", "Destructures a non-empty list into head and tail.", in("List"), out("Head"), out("Tail")),
	pred(":match_nil", "Holds when List is the empty list.", in("List")),
	pred(":match_entry", "Looks up the value stored under Key in a map.", in("Map"), in("Key"), out("Value")),
	pred(":match_field", "Extracts a field from a struct.", in("Struct"), in("Field"), out("Value")),
	pred(":list:member", "Enumerates the elements of a list.", out("Elem"), in("List")),
	pred(":string:starts_with", "Holds when Str starts with Prefix.", in("Str"), in("Prefix")),
	pred(":string:ends_with", "Holds when Str ends with Suffix.", in("Str"), in("Suffix")),
	pred(":string:contains", "Holds when Str contains Part.", in("Str"), in("Part")),
	pred(":within_distance", "Holds when |Left - Right| <= Distance.", in("Left"), in("Right"), in("Distance")),
}

var functionTable = []FunctionSpec{
	// arithmetic
	fn("fn:plus", Variadic, "Sum of the integer arguments."),
	fn("fn:minus", Variadic, "First argument minus the remaining ones; negation with one argument."),
	fn("fn:mult", Variadic, "Product of the integer arguments."),
	fn("fn:div", Variadic, "Integer division of the first argument by the remaining ones."),
	fn("fn:float:plus", Variadic, "Sum of the float arguments."),
	fn("fn:float:mult", Variadic, "Product of the float arguments."),
	fn("fn:float:div", Variadic, "Float division of the first argument by the remaining ones."),
	fn("fn:sqrt", 1, "Square root."),

	// constructors
	fn("fn:list", Variadic, "Builds a list."),
	fn("fn:map", Variadic, "Builds a map from alternating keys and values."),
	fn("fn:struct", Variadic, "Builds a struct from alternating field names and values."),
	fn("fn:pair", 2, "Builds a pair."),
	fn("fn:list:cons", 2, "Prepends an element to a list."),
	fn("fn:list:append", 2, "Appends an element to a list."),
	fn("fn:tuple", Variadic, "Builds a tuple (nested pairs)."),
	fn("fn:some", 1, "Wraps a value as a present option."),

	// accessors
	fn("fn:list:get", 2, "Element of a list at an index."),
	fn("fn:list:contains", 2, "/true when the list contains the element."),
	fn("fn:list:len", 1, "Length of a list."),
	fn("fn:struct:get", 2, "Value of a struct field."),

	// strings and names
	fn("fn:string:concat", Variadic, "Concatenation of the string forms of the arguments."),
	fn("fn:string:replace", 4, "Replaces up to N occurrences of Old with New."),
	fn("fn:number:to_string", 1, "Decimal form of a number."),
	fn("fn:float64:to_string", 1, "Decimal form of a float."),
	fn("fn:name:to_string", 1, "String form of a name constant."),
	fn("fn:name:root", 1, "First segment of a name constant."),
	fn("fn:name:tip", 1, "Last segment of a name constant."),
	fn("fn:name:list", 1, "Segments of a name constant as a list."),

	// grouping
	fn(GroupBy, Variadic, "Groups the rows of the body by the given variables."),
	reducer("fn:count", 0, "Number of rows in the group."),
	reducer("fn:sum", 1, "Integer sum over the group."),
	reducer("fn:float:sum", 1, "Float sum over the group."),
	reducer("fn:max", 1, "Maximum over the group."),
	reducer("fn:min", 1, "Minimum over the group."),
	reducer("fn:float:max", 1, "Float maximum over the group."),
	reducer("fn:float:min", 1, "Float minimum over the group."),
	reducer("fn:avg", 1, "Average over the group."),
	reducer("fn:collect", Variadic, "List of the values (or tuples) in the group."),
	reducer("fn:collect_distinct", Variadic, "Deduplicated list of the values in the group."),
	reducer("fn:collect_to_map", 2, "Map from the first argument to the second over the group."),
	reducer("fn:pick_any", 1, "One value from the group."),
}
