package jsast

// Node types of the tree-sitter JavaScript grammar the parser walks.
//
// Reference: https://github.com/tree-sitter/tree-sitter-javascript
const (
	nodeImportStatement = "import_statement"
	nodeImportClause    = "import_clause"
	nodeNamespaceImport = "namespace_import"
	nodeNamedImports    = "named_imports"
	nodeImportSpecifier = "import_specifier"

	nodeExportStatement = "export_statement"
	nodeExportClause    = "export_clause"
	nodeExportSpecifier = "export_specifier"

	nodeFunctionDeclaration  = "function_declaration"
	nodeGeneratorDeclaration = "generator_function_declaration"
	nodeClassDeclaration     = "class_declaration"
	nodeLexicalDeclaration   = "lexical_declaration"
	nodeVariableDeclaration  = "variable_declaration"
	nodeVariableDeclarator   = "variable_declarator"

	nodeExpressionStatement  = "expression_statement"
	nodeAssignmentExpression = "assignment_expression"
	nodeMemberExpression     = "member_expression"
	nodeCallExpression       = "call_expression"
	nodeIdentifier           = "identifier"

	nodeObject                   = "object"
	nodeArray                    = "array"
	nodePair                     = "pair"
	nodeShorthandProperty        = "shorthand_property_identifier"
	nodeObjectPattern            = "object_pattern"
	nodePairPattern              = "pair_pattern"
	nodeShorthandPropertyPattern = "shorthand_property_identifier_pattern"
	nodeString                   = "string"
	nodeStringFragment           = "string_fragment"
	nodeTemplateString           = "template_string"
)

// functionNodes are the value nodes that make a binding a Function.
var functionNodes = map[string]bool{
	"function":            true,
	"function_expression": true,
	"arrow_function":      true,
	"generator_function":  true,
	"class":               true,
}
