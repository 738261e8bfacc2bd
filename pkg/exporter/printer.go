package exporter

import (
	"fmt"
	"io"
	"text/tabwriter"

	"arcvault/pkg/arc"
	"arcvault/pkg/pointer"
)

// PrintSummary 打印文件系统的概要
func PrintSummary(fs *arc.FileSystem, w io.Writer) {
	fmt.Fprintf(w, "Name:        %s\n", fs.Name())
	fmt.Fprintf(w, "Files:       %d\n", fs.FileCount())
	fmt.Fprintf(w, "Directories: %d\n", len(fs.Directories()))
	fmt.Fprintf(w, "Hasher:      %s\n", fs.Hasher().Name())
	fmt.Fprintf(w, "Codec:       %s\n", fs.Codec().Name())
}

// PrintTree 递归列出 dir 下的全部文件 (类似 ls -lR)
func PrintTree(dir *arc.Directory, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "TYPE\tSIZE\tRAW\tHASH\tPATH\n")
	printDir(tw, dir)
	return tw.Flush()
}

func printDir(tw io.Writer, dir *arc.Directory) {
	for _, f := range dir.Files() {
		p := f.Pointer()
		kind := "file"
		if p.Compressed() {
			kind = "file*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", kind, fmtSize(p.Size()), fmtSize(p.RawSize()), f.UTF16Hash(), f.Path())
	}
	for _, sub := range dir.Directories() {
		fmt.Fprintf(tw, "dir\t-\t-\t%s\t%s/\n", sub.UTF16Hash(), sub.Path())
		printDir(tw, sub)
	}
}

// PrintFile 打印单个文件的元数据
func PrintFile(f *arc.File, w io.Writer) {
	h := pointer.HeaderOf(f.Pointer())
	fmt.Fprintf(w, "Path:       %s\n", f.Path())
	fmt.Fprintf(w, "UTF8Hash:   %s\n", f.UTF8Hash())
	fmt.Fprintf(w, "UTF16Hash:  %s\n", f.UTF16Hash())
	fmt.Fprintf(w, "Compressed: %t\n", h.Compressed)
	fmt.Fprintf(w, "Size:       %s\n", fmtSize(int64(h.Size)))
	fmt.Fprintf(w, "RawSize:    %s\n", fmtSize(int64(h.RawSize)))
	if src, ok := arc.SourceArchive(f); ok {
		fmt.Fprintf(w, "Archive:    %s\n", src)
	}
}

func fmtSize(s int64) string {
	if s < 1024 {
		return fmt.Sprintf("%dB", s)
	} else if s < 1024*1024 {
		return fmt.Sprintf("%.1fKB", float64(s)/1024)
	}
	return fmt.Sprintf("%.2fMB", float64(s)/1024/1024)
}
