// Command vfsfused mounts one of the reference subclasses (archivefs,
// sessionfs) as a real FUSE filesystem, exercising vfsfuse.Server end to
// end the way cmd/vfsdemo exercises vfscore.Class directly.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/golang/glog"
	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/spf13/pflag"
	"golang.org/x/net/context"

	"github.com/complyue/vfscache/vfscore"
	"github.com/complyue/vfscache/vfsdemo/archivefs"
	"github.com/complyue/vfscache/vfsdemo/sessionfs"
	"github.com/complyue/vfscache/vfsdemo/sessionfs/membackend"
	"github.com/complyue/vfscache/vfsfuse"
)

func init() {
	if glog.V(0) {
		if err := flag.CommandLine.Set("logtostderr", "true"); err != nil {
			log.Printf("failed changing glog default destination, err: %s", err)
		}
	}
}

var (
	mode     string
	ttl      time.Duration
	hopLimit int
)

func init() {
	pflag.StringVar(&mode, "mode", "archive", "demo `mode`: \"archive\" or \"session\"")
	pflag.DurationVar(&ttl, "ttl", 2*time.Second, "sessionfs directory-snapshot freshness window")
	pflag.IntVar(&hopLimit, "hop-limit", 8, "symlink follow hop limit")
}

func main() {
	pflag.Usage = func() {
		fmt.Fprint(pflag.CommandLine.Output(), `
This is vfsfused, a FUSE mount driver for the vfscore cache core.

`)
		pflag.PrintDefaults()
		fmt.Fprintf(pflag.CommandLine.Output(), `
Usage:

  %s --mode=archive <path-to.tar> <mountpoint>
  %s --mode=session <mountpoint>

`, os.Args[0], os.Args[0])
	}
	pflag.Parse()

	var (
		class     *vfscore.Class
		mountSpec string
		dir       string
	)

	switch mode {
	case "archive":
		if pflag.NArg() != 2 {
			pflag.Usage()
			os.Exit(1)
		}
		archivePath := pflag.Arg(0)
		dir = pflag.Arg(1)

		fs := archivefs.New()
		fs.Class().Tunables.HopLimit = hopLimit
		class = fs.Class()
		mountSpec = archivePath + "#"
	case "session":
		if pflag.NArg() != 1 {
			pflag.Usage()
			os.Exit(1)
		}
		dir = pflag.Arg(0)

		backend := membackend.New()
		fs := sessionfs.New(backend, ttl)
		fs.Class().Tunables.HopLimit = hopLimit
		class = fs.Class()
		mountSpec = "demo-session#"
	default:
		fmt.Printf("unknown mode [%s]\n", mode)
		pflag.Usage()
		os.Exit(1)
	}

	server := vfsfuse.NewServer(class, mountSpec)
	mfs, err := fuse.Mount(dir, fuseutil.NewFileSystemServer(server), &fuse.MountConfig{})
	if err != nil {
		fmt.Printf("mount error: %+v\n", err)
		os.Exit(3)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt)
	go func() {
		<-sigc
		fuse.Unmount(dir)
	}()

	if err := mfs.Join(context.Background()); err != nil {
		fmt.Printf("serve error: %+v\n", err)
		os.Exit(4)
	}
}
