package parser

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	cpp "github.com/tree-sitter/tree-sitter-cpp/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// grammarSpec describes how to read structural units out of one
// tree-sitter grammar: which node kinds are types, which are functions,
// and which field carries the declared name.
type grammarSpec struct {
	name      string
	language  *sitter.Language
	typeKinds map[string]bool
	funcKinds map[string]bool
}

func grammarSpecs() []grammarSpec {
	tsLang := sitter.NewLanguage(typescript.LanguageTypescript())
	return []grammarSpec{
		{
			name:      "python",
			language:  sitter.NewLanguage(python.Language()),
			typeKinds: kinds("class_definition"),
			funcKinds: kinds("function_definition"),
		},
		{
			name:      "typescript",
			language:  tsLang,
			typeKinds: kinds("class_declaration", "interface_declaration", "enum_declaration", "type_alias_declaration"),
			funcKinds: kinds("function_declaration", "method_definition"),
		},
		{
			name:      "javascript",
			language:  tsLang,
			typeKinds: kinds("class_declaration"),
			funcKinds: kinds("function_declaration", "method_definition"),
		},
		{
			name:      "rust",
			language:  sitter.NewLanguage(rust.Language()),
			typeKinds: kinds("struct_item", "enum_item", "trait_item", "union_item"),
			funcKinds: kinds("function_item"),
		},
		{
			name:      "c",
			language:  sitter.NewLanguage(c.Language()),
			typeKinds: kinds("struct_specifier", "enum_specifier", "union_specifier"),
			funcKinds: kinds("function_definition"),
		},
		{
			name:      "cpp",
			language:  sitter.NewLanguage(cpp.Language()),
			typeKinds: kinds("class_specifier", "struct_specifier", "enum_specifier", "union_specifier"),
			funcKinds: kinds("function_definition"),
		},
		{
			name:      "java",
			language:  sitter.NewLanguage(java.Language()),
			typeKinds: kinds("class_declaration", "interface_declaration", "enum_declaration", "record_declaration"),
			funcKinds: kinds("method_declaration", "constructor_declaration"),
		},
		{
			name:      "php",
			language:  sitter.NewLanguage(php.LanguagePHP()),
			typeKinds: kinds("class_declaration", "interface_declaration", "trait_declaration", "enum_declaration"),
			funcKinds: kinds("function_definition", "method_declaration"),
		},
		{
			name:      "ruby",
			language:  sitter.NewLanguage(ruby.Language()),
			typeKinds: kinds("class", "module"),
			funcKinds: kinds("method", "singleton_method"),
		},
	}
}

func kinds(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// treeSitterExtractor extracts a unit tree from one language's grammar.
type treeSitterExtractor struct {
	spec grammarSpec
}

func newTreeSitterExtractor(spec grammarSpec) *treeSitterExtractor {
	return &treeSitterExtractor{spec: spec}
}

// parse returns the unit tree, or nil when the grammar cannot produce a
// usable tree (the caller then degrades to the fallback extractor).
func (e *treeSitterExtractor) parse(src *SourceFile) (result *FileTree) {
	// Grammar C code can misbehave on malformed input; a panic here must
	// degrade, not crash the run.
	defer func() {
		if r := recover(); r != nil {
			result = nil
		}
	}()

	p := sitter.NewParser()
	defer p.Close()
	p.SetLanguage(e.spec.language)

	tree := p.Parse(src.Content, nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()

	rootNode := tree.RootNode()
	if rootNode == nil || rootNode.Kind() == "ERROR" {
		return nil
	}

	fileTree := newFileTree(src, e.spec.name, FidelityFull)
	e.extract(rootNode, src, fileTree.Root, nil)
	return fileTree
}

// extract walks node's children, appending type/function units to parent.
// scope carries the enclosing type names used for qualified names.
func (e *treeSitterExtractor) extract(node *sitter.Node, src *SourceFile, parent *Unit, scope []string) {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		kind := child.Kind()
		switch {
		case e.spec.typeKinds[kind]:
			unit := e.newUnit(child, src, KindType, scope)
			parent.Children = append(parent.Children, unit)
			childScope := append(append([]string{}, scope...), unit.Name)
			e.extract(child, src, unit, childScope)
		case e.spec.funcKinds[kind]:
			unit := e.newUnit(child, src, KindFunction, scope)
			parent.Children = append(parent.Children, unit)
		default:
			// Container nodes (bodies, blocks, decorated definitions, export
			// statements) are transparent: recurse without opening a scope.
			e.extract(child, src, parent, scope)
		}
	}
}

func (e *treeSitterExtractor) newUnit(node *sitter.Node, src *SourceFile, kind UnitKind, scope []string) *Unit {
	name := nodeName(node, src.Content)
	segments := append(append([]string{}, scope...), name)
	return &Unit{
		Kind:          kind,
		Name:          name,
		QualifiedName: QualifyName(src.Path, segments...),
		Signature:     firstLine(src.Content, node),
		StartByte:     int(node.StartByte()),
		EndByte:       int(node.EndByte()),
		StartLine:     int(node.StartPosition().Row) + 1,
		EndLine:       int(node.EndPosition().Row) + 1,
	}
}

// nodeName reads the grammar's "name" field, falling back to the node's
// first identifier child for grammars without one (e.g. C specifiers).
func nodeName(node *sitter.Node, source []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return string(source[nameNode.StartByte():nameNode.EndByte()])
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		k := child.Kind()
		if k == "identifier" || k == "type_identifier" || k == "constant" {
			return string(source[child.StartByte():child.EndByte()])
		}
	}
	return "(anonymous)"
}

// firstLine returns the declaration's first source line as its signature.
func firstLine(source []byte, node *sitter.Node) string {
	start, end := node.StartByte(), node.EndByte()
	if int(end) > len(source) {
		end = uint(len(source))
	}
	text := source[start:end]
	for i, b := range text {
		if b == '\n' {
			return string(text[:i])
		}
	}
	return string(text)
}
