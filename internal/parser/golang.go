package parser

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// parseGoFile parses a Go source file using go/ast.
func parseGoFile(src *SourceFile) (*FileTree, error) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, src.Path, src.Content, parser.ParseComments)
	if err != nil {
		return nil, err
	}

	tree := newFileTree(src, "go", FidelityFull)
	types := make(map[string]*Unit)

	// First pass: type declarations, so methods can attach to them.
	for _, decl := range file.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}
		for _, spec := range genDecl.Specs {
			typeSpec, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			unit := goUnit(fset, src, KindType, typeSpec.Name.Name, typeSpec.Pos(), typeSpec.End())
			unit.QualifiedName = QualifyName(src.Path, typeSpec.Name.Name)
			unit.Signature = "type " + typeSpec.Name.Name
			types[typeSpec.Name.Name] = unit
			tree.Root.Children = append(tree.Root.Children, unit)
		}
	}

	// Second pass: functions and methods.
	for _, decl := range file.Decls {
		funcDecl, ok := decl.(*ast.FuncDecl)
		if !ok {
			continue
		}
		name := funcDecl.Name.Name
		unit := goUnit(fset, src, KindFunction, name, funcDecl.Pos(), funcDecl.End())

		if funcDecl.Recv != nil && len(funcDecl.Recv.List) > 0 {
			recvName := receiverTypeName(funcDecl.Recv.List[0].Type)
			unit.Signature = "func (" + recvName + ") " + name + goSignatureSuffix(src, fset, funcDecl)
			if owner, ok := types[recvName]; ok {
				unit.QualifiedName = QualifyName(src.Path, recvName, name)
				owner.Children = append(owner.Children, unit)
				continue
			}
			unit.QualifiedName = QualifyName(src.Path, recvName, name)
		} else {
			unit.Signature = "func " + name + goSignatureSuffix(src, fset, funcDecl)
			unit.QualifiedName = QualifyName(src.Path, name)
		}
		tree.Root.Children = append(tree.Root.Children, unit)
	}

	return tree, nil
}

func goUnit(fset *token.FileSet, src *SourceFile, kind UnitKind, name string, pos, end token.Pos) *Unit {
	startPos := fset.Position(pos)
	endPos := fset.Position(end)
	return &Unit{
		Kind:      kind,
		Name:      name,
		StartByte: startPos.Offset,
		EndByte:   endPos.Offset,
		StartLine: startPos.Line,
		EndLine:   endPos.Line,
	}
}

// goSignatureSuffix extracts the parameter/result portion of a func
// declaration, up to (and excluding) the body's opening brace.
func goSignatureSuffix(src *SourceFile, fset *token.FileSet, decl *ast.FuncDecl) string {
	start := fset.Position(decl.Name.End()).Offset
	end := fset.Position(decl.Type.End()).Offset
	if start < 0 || end > len(src.Content) || start >= end {
		return "()"
	}
	return strings.TrimRight(string(src.Content[start:end]), " \t\n")
}

func receiverTypeName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return receiverTypeName(t.X)
	case *ast.IndexExpr:
		return receiverTypeName(t.X)
	case *ast.IndexListExpr:
		return receiverTypeName(t.X)
	default:
		return ""
	}
}
