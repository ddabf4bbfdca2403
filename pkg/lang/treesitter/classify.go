// GDScript node type groups used by the scope builder, the inference engine
// and the extract refactor.

package treesitter

// Node types of the GDScript grammar.
const (
	KindSource              = "source"
	KindBody                = "body"
	KindVariableStatement   = "variable_statement"
	KindConstStatement      = "const_statement"
	KindFunctionDefinition  = "function_definition"
	KindParameters          = "parameters"
	KindTypedParameter      = "typed_parameter"
	KindTypedDefaultParam   = "typed_default_parameter"
	KindIfStatement         = "if_statement"
	KindElifClause          = "elif_clause"
	KindElseClause          = "else_clause"
	KindForStatement        = "for_statement"
	KindWhileStatement      = "while_statement"
	KindMatchStatement      = "match_statement"
	KindMatchBody           = "match_body"
	KindPatternSection      = "pattern_section"
	KindExtendsStatement    = "extends_statement"
	KindInferredType        = "inferred_type"
	KindIdentifier          = "identifier"
	KindName                = "name"
	KindAttribute           = "attribute"
	KindAttributeCall       = "attribute_call"
	KindCall                = "call"
	KindArguments           = "arguments"
	KindBinaryOperator      = "binary_operator"
	KindUnaryOperator       = "unary_operator"
	KindParenthesized       = "parenthesized_expression"
	KindInteger             = "integer"
	KindFloat               = "float"
	KindString              = "string"
	KindTrue                = "true"
	KindFalse               = "false"
	KindArray               = "array"
	KindDictionary          = "dictionary"
	KindLambda              = "lambda"
	KindExpressionStatement = "expression_statement"
)

// DeclarationNodeTypes lists statements that bind a name in the current scope.
var DeclarationNodeTypes = map[string]bool{
	KindVariableStatement: true,
	KindConstStatement:    true,
}

// ParameterNodeTypes lists parameter forms that carry an explicit type.
var ParameterNodeTypes = map[string]bool{
	KindTypedParameter:    true,
	KindTypedDefaultParam: true,
}

// BranchNodeTypes lists alternatives of an if statement.
var BranchNodeTypes = map[string]bool{
	KindElifClause: true,
	KindElseClause: true,
}

// LoopNodeTypes lists statements whose body is a loop scope.
var LoopNodeTypes = map[string]bool{
	KindForStatement:   true,
	KindWhileStatement: true,
}

// LiteralNodeTypes maps literal expressions to their builtin type name.
var LiteralNodeTypes = map[string]string{
	KindInteger:    "int",
	KindFloat:      "float",
	KindString:     "String",
	KindTrue:       "bool",
	KindFalse:      "bool",
	KindArray:      "Array",
	KindDictionary: "Dictionary",
}

// BooleanOperators are operators whose result is bool whenever the operator
// table has no better answer.
var BooleanOperators = map[string]bool{
	"and": true, "or": true, "not": true, "!": true, "&&": true, "||": true,
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	"in": true, "is": true,
}
