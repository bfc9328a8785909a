package policyopa

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"path"
	"sort"
	"strings"
)

type ruleFile struct {
	name   string
	source string
}

// ruleSet is the group rules loaded from one directory. Its fingerprint
// depends only on the .rego file names and contents, so editor droppings
// and vendored copies never change it.
type ruleSet struct {
	files       []ruleFile
	fingerprint string
}

func readRules(fsys fs.FS) (ruleSet, error) {
	var files []ruleFile
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		base := path.Base(name)
		if d.IsDir() {
			if name != "." && (base == "vendor" || strings.HasPrefix(base, ".")) {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(base, ".") || path.Ext(base) != ".rego" {
			return nil
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		files = append(files, ruleFile{name: name, source: string(data)})
		return nil
	})
	if err != nil {
		return ruleSet{}, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].name < files[j].name })

	h := sha256.New()
	for _, f := range files {
		sum := sha256.Sum256([]byte(f.source))
		h.Write([]byte(f.name))
		h.Write([]byte{0})
		h.Write([]byte(hex.EncodeToString(sum[:])))
		h.Write([]byte{'\n'})
	}
	return ruleSet{files: files, fingerprint: hex.EncodeToString(h.Sum(nil))}, nil
}
