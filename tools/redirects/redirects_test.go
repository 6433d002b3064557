package main

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const panicSrc = `package kfmt

// Panic halts.
//go:redirect-from runtime.gopanic
func Panic(e interface{}) {}

//go:redirect-from runtime.throw
func panicString(msg string) {}

func helper() {}
`

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()

	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func kernelTree(t *testing.T) string {
	root := t.TempDir()
	writeFile(t, root, "go.mod", "module example.com/kern\n\ngo 1.22\n")
	writeFile(t, root, "kernel/kfmt/panic.go", panicSrc)
	writeFile(t, root, "kernel/kfmt/panic_test.go", "package kfmt\n\n//go:redirect-from runtime.exit\nfunc fake() {}\n")
	writeFile(t, root, "kernel/cpu/cpu.go", "package cpu\n\nfunc Halt()\n")
	return root
}

func TestModulePath(t *testing.T) {
	root := kernelTree(t)

	modPath, err := modulePath(root)
	require.NoError(t, err)
	assert.Equal(t, "example.com/kern", modPath)

	writeFile(t, root, "go.mod", "go 1.22\n")
	_, err = modulePath(root)
	require.ErrorContains(t, err, "missing module directive")

	_, err = modulePath(t.TempDir())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestCollectGoFiles(t *testing.T) {
	root := kernelTree(t)

	goFiles, err := collectGoFiles(filepath.Join(root, "kernel"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "kernel", "cpu", "cpu.go"),
		filepath.Join(root, "kernel", "kfmt", "panic.go"),
	}, goFiles)
}

func TestScanRedirects(t *testing.T) {
	root := kernelTree(t)

	redirects, err := scanRedirects(root)
	require.NoError(t, err)
	require.Len(t, redirects, 2)

	assert.Equal(t, "runtime.gopanic", redirects[0].src)
	assert.Equal(t, "example.com/kern/kernel/kfmt.Panic", redirects[0].dst)
	assert.Equal(t, "runtime.throw", redirects[1].src)
	assert.Equal(t, "example.com/kern/kernel/kfmt.panicString", redirects[1].dst)
}

func TestScanRedirectsErrors(t *testing.T) {
	_, err := scanRedirects(t.TempDir())
	require.ErrorContains(t, err, "not a kernel root folder")

	root := kernelTree(t)
	writeFile(t, root, "kernel/bad.go", "package kernel\n\n//go:redirect-from\nfunc Bad() {}\n")
	_, err = scanRedirects(root)
	require.ErrorContains(t, err, `malformed go:redirect-from syntax for "example.com/kern/kernel.Bad"`)

	root = kernelTree(t)
	writeFile(t, root, "kernel/odd.go", "package kernel\n\n//go:redirect-fromruntime.exit\nfunc Odd() {}\n")
	_, err = scanRedirects(root)
	require.ErrorContains(t, err, `malformed go:redirect-from syntax for "example.com/kern/kernel.Odd"`)

	root = kernelTree(t)
	writeFile(t, root, "kernel/cpu/dup.go", "package cpu\n\n//go:redirect-from runtime.gopanic\nfunc Dup() {}\n")
	_, err = scanRedirects(root)
	require.ErrorContains(t, err, `"runtime.gopanic" is already redirected at`)

	root = kernelTree(t)
	writeFile(t, root, "kernel/broken.go", "package kernel\n\nfunc {\n")
	_, err = scanRedirects(root)
	require.ErrorContains(t, err, "broken.go")
}

func TestResolveRedirectSymbols(t *testing.T) {
	symbols := []elf.Symbol{
		{Name: "runtime.gopanic", Value: 0x1000},
		{Name: "example.com/kern/kernel/kfmt.Panic", Value: 0x2000},
		{Name: "runtime.throw", Value: 0x3000},
		// undefined symbols have no address
		{Name: "example.com/kern/kernel/kfmt.panicString", Value: 0},
	}
	img := newKernelImage("kernel.bin", symbols, 0, 64)

	redirects := []*redirect{{src: "runtime.gopanic", dst: "example.com/kern/kernel/kfmt.Panic"}}
	require.NoError(t, img.resolve(redirects))
	assert.Equal(t, uint64(0x1000), redirects[0].srcVMA)
	assert.Equal(t, uint64(0x2000), redirects[0].dstVMA)

	redirects = []*redirect{{src: "runtime.missing", dst: "example.com/kern/kernel/kfmt.Panic"}}
	require.ErrorContains(t, img.resolve(redirects), `could not locate address of "runtime.missing"`)

	redirects = []*redirect{{src: "runtime.throw", dst: "example.com/kern/kernel/kfmt.panicString"}}
	require.ErrorContains(t, img.resolve(redirects), `"example.com/kern/kernel/kfmt.panicString"`)
}

func TestEncodeTable(t *testing.T) {
	redirects := []*redirect{
		{srcVMA: 0x1000, dstVMA: 0x2000},
		{srcVMA: 0x3000, dstVMA: 0xffffffff80004000},
	}

	img := newKernelImage("kernel.bin", nil, 0, 32)
	table, err := img.encodeTable(redirects)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x00, 0x10, 0, 0, 0, 0, 0, 0, 0x00, 0x20, 0, 0, 0, 0, 0, 0,
		0x00, 0x30, 0, 0, 0, 0, 0, 0, 0x00, 0x40, 0x00, 0x80, 0xff, 0xff, 0xff, 0xff,
	}, table)

	img = newKernelImage("kernel.bin", nil, 0, 31)
	_, err = img.encodeTable(redirects)
	require.ErrorContains(t, err, "2 redirects need 32 bytes but .goredirectstbl holds 31")
}

func TestWriteTable(t *testing.T) {
	root := t.TempDir()
	imgFile := filepath.Join(root, "kernel.bin")
	writeFile(t, root, "kernel.bin", strings.Repeat("\xaa", 48))

	symbols := []elf.Symbol{
		{Name: "runtime.gopanic", Value: 0x1000},
		{Name: "example.com/kern/kernel/kfmt.Panic", Value: 0x2000},
	}
	img := newKernelImage(imgFile, symbols, 8, 32)

	redirects := []*redirect{{src: "runtime.gopanic", dst: "example.com/kern/kernel/kfmt.Panic"}}
	require.NoError(t, img.writeTable(redirects))

	data, err := os.ReadFile(imgFile)
	require.NoError(t, err)
	require.Len(t, data, 48)

	// only the entries are written; the rest of the section is untouched
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 8), data[:8])
	assert.Equal(t, []byte{0x00, 0x10, 0, 0, 0, 0, 0, 0, 0x00, 0x20, 0, 0, 0, 0, 0, 0}, data[8:24])
	assert.Equal(t, bytes.Repeat([]byte{0xaa}, 24), data[24:])
}

func TestPopulateTableRejectsNonELF(t *testing.T) {
	root := kernelTree(t)
	img := filepath.Join(root, "kernel.bin")
	writeFile(t, root, "kernel.bin", "not an elf image")

	require.Error(t, populateTable(root, img))
}

func TestCountCommand(t *testing.T) {
	root := kernelTree(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"count", "--root", root})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "2", out.String())
}
