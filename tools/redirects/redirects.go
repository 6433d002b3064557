package main

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/mod/modfile"
)

const (
	redirectDirective    = "//go:redirect-from"
	redirectTableSection = ".goredirectstbl"

	// redirectEntrySize is the size of a (src, dst) address pair in the
	// redirect table.
	redirectEntrySize = 16
)

// redirect maps a runtime symbol (src) to the kernel function that replaces
// it (dst).
type redirect struct {
	src string
	dst string

	srcVMA uint64
	dstVMA uint64
}

// modulePath returns the module path declared by the go.mod file in root.
func modulePath(root string) (string, error) {
	goMod := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(goMod)
	if err != nil {
		return "", fmt.Errorf("reading module file: %w", err)
	}

	modPath := modfile.ModulePath(data)
	if modPath == "" {
		return "", fmt.Errorf("%s: missing module directive", goMod)
	}

	return modPath, nil
}

// collectGoFiles returns the non-test Go files below dir, sorted by path.
func collectGoFiles(dir string) ([]string, error) {
	var goFiles []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir(), filepath.Ext(p) != ".go", strings.HasSuffix(p, "_test.go"):
			return nil
		}

		goFiles = append(goFiles, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(goFiles)
	return goFiles, nil
}

// findRedirects scans the supplied files (paths relative to root) for
// functions annotated with a redirect directive. The redirect target is the
// fully qualified linker symbol of the annotated function. A runtime symbol
// may only be redirected once.
func findRedirects(root, modPath string, goFiles []string) ([]*redirect, error) {
	var (
		fset      = token.NewFileSet()
		redirects []*redirect
		seen      = make(map[string]token.Position)
	)

	for _, goFile := range goFiles {
		f, err := parser.ParseFile(fset, filepath.Join(root, goFile), nil, parser.ParseComments)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", goFile, err)
		}

		pkgPath := path.Join(modPath, filepath.ToSlash(filepath.Dir(goFile)))
		for _, decl := range f.Decls {
			fnDecl, ok := decl.(*ast.FuncDecl)
			if !ok || fnDecl.Doc == nil || fnDecl.Recv != nil {
				continue
			}

			dst := pkgPath + "." + fnDecl.Name.Name
			for _, comment := range fnDecl.Doc.List {
				args, found := strings.CutPrefix(comment.Text, redirectDirective)
				if !found {
					continue
				}

				pos := fset.Position(comment.Pos())
				src, err := parseDirective(args)
				if err != nil {
					return nil, fmt.Errorf("%s: %w for %q", pos, err, dst)
				}

				if prev, dup := seen[src]; dup {
					return nil, fmt.Errorf("%s: %q is already redirected at %s", pos, src, prev)
				}
				seen[src] = pos

				redirects = append(redirects, &redirect{src: src, dst: dst})
			}
		}
	}

	return redirects, nil
}

// parseDirective returns the runtime symbol named by the arguments of a
// redirect directive.
func parseDirective(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 || !strings.HasPrefix(args, " ") {
		return "", errors.New("malformed go:redirect-from syntax")
	}

	return fields[0], nil
}

// kernelImage holds the parts of a linked kernel image needed to populate
// its redirect table.
type kernelImage struct {
	path string

	// symbols maps linker symbol names to their addresses.
	symbols map[string]uint64

	tableOffset int64
	tableSize   uint64
}

// openKernelImage reads the symbol table and the redirect table location of
// the ELF image at imgFile.
func openKernelImage(imgFile string) (*kernelImage, error) {
	f, err := elf.Open(imgFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	table := f.Section(redirectTableSection)
	if table == nil {
		return nil, fmt.Errorf("%s: missing %s section", imgFile, redirectTableSection)
	}

	symbols, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imgFile, err)
	}

	return newKernelImage(imgFile, symbols, int64(table.Offset), table.Size), nil
}

func newKernelImage(imgFile string, symbols []elf.Symbol, tableOffset int64, tableSize uint64) *kernelImage {
	img := &kernelImage{
		path:        imgFile,
		symbols:     make(map[string]uint64, len(symbols)),
		tableOffset: tableOffset,
		tableSize:   tableSize,
	}

	for _, sym := range symbols {
		if sym.Value != 0 {
			img.symbols[sym.Name] = sym.Value
		}
	}

	return img
}

// resolve fills in the source and destination addresses of each redirect.
func (img *kernelImage) resolve(redirects []*redirect) error {
	for _, r := range redirects {
		var ok bool
		if r.srcVMA, ok = img.symbols[r.src]; !ok {
			return fmt.Errorf("%s: could not locate address of %q", img.path, r.src)
		}

		if r.dstVMA, ok = img.symbols[r.dst]; !ok {
			return fmt.Errorf("%s: could not locate address of %q", img.path, r.dst)
		}
	}

	return nil
}

// encodeTable returns the redirect table contents: one little-endian
// (src, dst) address pair per redirect.
func (img *kernelImage) encodeTable(redirects []*redirect) ([]byte, error) {
	size := uint64(len(redirects)) * redirectEntrySize
	if size > img.tableSize {
		return nil, fmt.Errorf("%s: %d redirects need %d bytes but %s holds %d",
			img.path, len(redirects), size, redirectTableSection, img.tableSize)
	}

	table := make([]byte, size)
	for i, r := range redirects {
		entry := table[i*redirectEntrySize:]
		binary.LittleEndian.PutUint64(entry[0:], r.srcVMA)
		binary.LittleEndian.PutUint64(entry[8:], r.dstVMA)
	}

	return table, nil
}

// writeTable resolves the redirects and writes the redirect table into the
// image file.
func (img *kernelImage) writeTable(redirects []*redirect) error {
	if err := img.resolve(redirects); err != nil {
		return err
	}

	table, err := img.encodeTable(redirects)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(img.path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	if _, err = f.WriteAt(table, img.tableOffset); err != nil {
		f.Close()
		return fmt.Errorf("%s: writing redirect table: %w", img.path, err)
	}

	return f.Close()
}
