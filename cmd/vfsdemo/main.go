// Command vfsdemo drives the vfscore cache core against one of the two
// reference subclasses (archivefs, sessionfs) for interactive poking at
// the scenarios of spec.md §8.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/complyue/vfscache/vfscore"
	"github.com/complyue/vfscache/vfsdemo/archivefs"
	"github.com/complyue/vfscache/vfsdemo/sessionfs"
	"github.com/complyue/vfscache/vfsdemo/sessionfs/membackend"
)

func init() {
	// change glog default destination to stderr, same as cmd/jdfs/main.go
	if glog.V(0) {
		if err := flag.CommandLine.Set("logtostderr", "true"); err != nil {
			log.Printf("failed changing glog default destination, err: %s", err)
		}
	}
}

var (
	mode     string
	cfgFile  string
	ttl      time.Duration
	hopLimit int
)

func init() {
	pflag.StringVar(&mode, "mode", "archive", "demo `mode`: \"archive\" or \"session\"")
	pflag.StringVar(&cfgFile, "config", "", "optional viper `config` file overriding defaults")
	pflag.DurationVar(&ttl, "ttl", 2*time.Second, "sessionfs directory-snapshot freshness window")
	pflag.IntVar(&hopLimit, "hop-limit", 8, "symlink follow hop limit")

	viper.SetDefault("mode", "archive")
	viper.SetDefault("ttl", "2s")
	viper.SetDefault("hop-limit", 8)
}

func main() {
	pflag.Usage = func() {
		fmt.Fprint(pflag.CommandLine.Output(), `
This is vfsdemo, a driver for the vfscore cache core.

`)
		pflag.PrintDefaults()
		fmt.Fprintf(pflag.CommandLine.Output(), `
Usage:

  %s --mode=archive <path-to.tar> <inner/path>
  %s --mode=session <inner/path>

`, os.Args[0], os.Args[0])
	}
	pflag.Parse()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Printf("error reading config [%s]: +%v\n", cfgFile, err)
			os.Exit(2)
		}
		if viper.IsSet("ttl") {
			ttl = viper.GetDuration("ttl")
		}
		if viper.IsSet("hop-limit") {
			hopLimit = viper.GetInt("hop-limit")
		}
	}

	switch mode {
	case "archive":
		runArchive()
	case "session":
		runSession()
	default:
		fmt.Printf("unknown mode [%s]\n", mode)
		pflag.Usage()
		os.Exit(1)
	}
}

func runArchive() {
	if pflag.NArg() != 2 {
		pflag.Usage()
		os.Exit(1)
	}
	archivePath, innerPath := pflag.Arg(0), pflag.Arg(1)

	fs := archivefs.New()
	fs.Class().Tunables.HopLimit = hopLimit

	st, fsErr := fs.Class().Stat(archivePath + "#/" + innerPath)
	if fsErr != vfscore.EOKAY {
		fmt.Printf("stat error: %s\n", fsErr.Error())
		os.Exit(3)
	}
	fmt.Printf("%s: %s\n", innerPath, st)
}

// runSession lists one remote directory (driving DirLoad through the
// linear resolver) and prints each entry's name and type.
func runSession() {
	if pflag.NArg() != 1 {
		pflag.Usage()
		os.Exit(1)
	}
	dirPath := pflag.Arg(0)

	backend := membackend.New()
	fs := sessionfs.New(backend, ttl)
	fs.Class().Tunables.HopLimit = hopLimit

	dh, fsErr := fs.Class().OpenDir("demo-session#/" + dirPath)
	if fsErr != vfscore.EOKAY {
		fmt.Printf("opendir error: %s\n", fsErr.Error())
		os.Exit(3)
	}
	for {
		de, ok := dh.ReadDir()
		if !ok {
			break
		}
		fmt.Printf("%s\t%s\n", de.Name, de.Type)
	}
	dh.CloseDir()
}
