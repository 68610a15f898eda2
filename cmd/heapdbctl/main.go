// heapdbctl is a small operator CLI over the heap file layer: create a
// heap file, insert/scan/delete raw records, and report buffer pool
// stats. One subcommand per verb, flag.NewFlagSet per subcommand,
// hardcoded sensible defaults, matching cmd/seed and cmd/inspect_idx
// in spirit.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dustin/go-humanize"

	"heapdb/bufferpool"
	"heapdb/catalog"
	"heapdb/diskmanager"
	"heapdb/heap"
	"heapdb/page"
	"heapdb/types"
)

const defaultPoolCapacity = 64

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "create":
		err = cmdCreate(os.Args[2:])
	case "insert":
		err = cmdInsert(os.Args[2:])
	case "scan":
		err = cmdScan(os.Args[2:])
	case "delete":
		err = cmdDelete(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "catalog":
		err = cmdCatalog(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("heapdbctl: %v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: heapdbctl <create|insert|scan|delete|stats|catalog> [flags]")
}

// cmdCatalog lists every relation known to the catalog under -dir/-db,
// along with the heap file id it was registered under, exercising the
// catalog's on-disk schema and file-mapping loaders.
func cmdCatalog(args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	dir := fs.String("dir", ".", "database root directory")
	db := fs.String("db", "default", "database name")
	fs.Parse(args)

	cat := catalog.NewManager(*dir)
	cat.SetCurrentDatabase(*db)
	if err := cat.LoadAllSchemas(); err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}
	if err := cat.LoadFileMapping(); err != nil {
		return fmt.Errorf("load file mapping: %w", err)
	}

	relations := cat.RelationNames()
	if len(relations) == 0 {
		fmt.Println("no relations registered")
		return nil
	}
	for _, name := range relations {
		fileID, err := cat.GetRelFileID(name)
		if err != nil {
			fmt.Printf("%-20s (no file mapping: %v)\n", name, err)
			continue
		}
		attrs, err := cat.GetRelInfo(name)
		if err != nil {
			return err
		}
		fmt.Printf("%-20s file_id=%d attrs=%d\n", name, fileID, len(attrs))
	}
	return nil
}

func openEnv(dir string, poolCap int) (*heap.Env, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create base dir: %w", err)
	}
	dm := diskmanager.NewDiskManager()
	pool, err := bufferpool.New(poolCap, dm)
	if err != nil {
		return nil, fmt.Errorf("create buffer pool: %w", err)
	}
	return heap.NewEnv(dir, dm, pool), nil
}

func cmdCreate(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	dir := fs.String("dir", ".", "base directory for heap files")
	name := fs.String("name", "", "relation name")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	env, err := openEnv(*dir, defaultPoolCapacity)
	if err != nil {
		return err
	}
	if err := env.CreateHeapFile(*name); err != nil {
		return err
	}
	fmt.Printf("created heap file %q in %s\n", *name, *dir)
	return nil
}

func cmdInsert(args []string) error {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	dir := fs.String("dir", ".", "base directory for heap files")
	name := fs.String("name", "", "relation name")
	hexData := fs.String("hex", "", "record bytes, hex-encoded")
	fs.Parse(args)
	if *name == "" || *hexData == "" {
		return fmt.Errorf("-name and -hex are required")
	}
	data, err := hex.DecodeString(*hexData)
	if err != nil {
		return fmt.Errorf("decode -hex: %w", err)
	}

	env, err := openEnv(*dir, defaultPoolCapacity)
	if err != nil {
		return err
	}
	ifs, err := heap.OpenInsertFileScan(env, *name)
	if err != nil {
		return err
	}
	rid, err := ifs.InsertRecord(data)
	if cerr := ifs.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	fmt.Printf("inserted rid={page:%d slot:%d}\n", rid.PageNo, rid.SlotNo)
	return nil
}

func cmdScan(args []string) error {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	dir := fs.String("dir", ".", "base directory for heap files")
	name := fs.String("name", "", "relation name")
	fs.Parse(args)
	if *name == "" {
		return fmt.Errorf("-name is required")
	}

	env, err := openEnv(*dir, defaultPoolCapacity)
	if err != nil {
		return err
	}
	scan, err := heap.OpenHeapFileScan(env, *name)
	if err != nil {
		return err
	}
	defer scan.Close()
	if err := scan.StartScan(0, 0, 0, nil, types.EQ); err != nil {
		return err
	}

	for {
		rid, rec, err := scan.ScanNext()
		if err != nil {
			if st, ok := types.AsStatus(err); ok && st == types.FileEOF {
				return nil
			}
			return err
		}
		fmt.Printf("rid={page:%d slot:%d} data=%s\n", rid.PageNo, rid.SlotNo, hex.EncodeToString(rec.Data))
	}
}

func cmdDelete(args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	dir := fs.String("dir", ".", "base directory for heap files")
	name := fs.String("name", "", "relation name")
	pageNo := fs.Int("page", -1, "page number of the record")
	slotNo := fs.Uint("slot", 0, "slot number of the record")
	fs.Parse(args)
	if *name == "" || *pageNo < 0 {
		return fmt.Errorf("-name and -page are required")
	}

	env, err := openEnv(*dir, defaultPoolCapacity)
	if err != nil {
		return err
	}
	hf, err := heap.OpenHeapFile(env, *name)
	if err != nil {
		return err
	}
	defer hf.Close()

	rid := types.RID{PageNo: int32(*pageNo), SlotNo: uint16(*slotNo)}
	if _, err := hf.GetRecord(rid); err != nil {
		return fmt.Errorf("locate record: %w", err)
	}
	scan, err := heap.OpenHeapFileScan(env, *name)
	if err != nil {
		return err
	}
	defer scan.Close()
	if err := scan.StartScan(0, 0, 0, nil, types.EQ); err != nil {
		return err
	}
	for {
		curRid, _, err := scan.ScanNext()
		if err != nil {
			return fmt.Errorf("record not found via scan: %w", err)
		}
		if curRid == rid {
			if err := scan.DeleteRecord(); err != nil {
				return err
			}
			fmt.Printf("deleted rid={page:%d slot:%d}\n", rid.PageNo, rid.SlotNo)
			return nil
		}
	}
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	poolCap := fs.Int("cap", defaultPoolCapacity, "buffer pool capacity, in pages")
	fs.Parse(args)

	dm := diskmanager.NewDiskManager()
	pool, err := bufferpool.New(*poolCap, dm)
	if err != nil {
		return err
	}
	stats := pool.GetStats()
	fmt.Printf("capacity:    %d pages (%s)\n", stats.Capacity, humanize.Bytes(uint64(stats.Capacity*page.PageSize)))
	fmt.Printf("resident:    %d pages\n", stats.TotalPages)
	fmt.Printf("pinned:      %d pages\n", stats.PinnedPages)
	fmt.Printf("dirty:       %d pages\n", stats.DirtyPages)
	fmt.Printf("hits/misses: %d/%d\n", stats.Hits, stats.Misses)
	return nil
}
