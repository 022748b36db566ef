// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/chipmigrate/chipmigrate/internal/chipconfig"
)

// summary is the document printed by the command. Identifiers are
// rendered as 0x-prefixed hex strings because that is how Matter
// tooling spells node and fabric IDs.
type summary struct {
	Fabrics         []fabricSummary `yaml:"fabrics" json:"fabrics"`
	Inconsistencies []string        `yaml:"inconsistencies,omitempty" json:"inconsistencies,omitempty"`
}

type fabricSummary struct {
	Index    uint8  `yaml:"index" json:"index"`
	Label    string `yaml:"label,omitempty" json:"label,omitempty"`
	VendorID uint16 `yaml:"vendor-id,omitempty" json:"vendor-id,omitempty"`
	FabricID string `yaml:"fabric-id,omitempty" json:"fabric-id,omitempty"`
	NodeID   string `yaml:"node-id,omitempty" json:"node-id,omitempty"`

	// Complete reports whether the fabric projects to a full
	// configuration: certificates, metadata and identity
	// protection key all present and decodable.
	Complete bool `yaml:"complete" json:"complete"`

	Chain *chainSummary `yaml:"chain,omitempty" json:"chain,omitempty"`
}

type chainSummary struct {
	Valid bool   `yaml:"valid" json:"valid"`
	RCAC  string `yaml:"rcac" json:"rcac"`
	ICAC  string `yaml:"icac" json:"icac"`
	NOC   string `yaml:"noc" json:"noc"`
	Error string `yaml:"error,omitempty" json:"error,omitempty"`
}

func run(path, format string, verify bool, out string, w io.Writer) error {
	if format != "yaml" && format != "json" {
		return errors.NotValidf("output format %q", format)
	}
	store := chipconfig.NewStore()
	if err := store.Load(path); err != nil {
		return errors.Trace(err)
	}

	doc := summary{
		Fabrics:         []fabricSummary{},
		Inconsistencies: store.Inconsistencies(),
	}
	for _, index := range store.FabricIndices() {
		fs := fabricSummary{Index: index}
		fabric, _ := store.Fabric(index)
		if md := fabric.MetadataDecoded; md != nil {
			fs.Label = md.Label
			fs.VendorID = md.VendorID
		}
		if cfg, err := store.FabricConfig(index); err == nil {
			fs.Complete = true
			fs.FabricID = fmt.Sprintf("%#x", cfg.FabricID)
			fs.NodeID = fmt.Sprintf("%#x", cfg.NodeID)
		}
		if verify {
			result := store.VerifyChain(index)
			fs.Chain = &chainSummary{
				Valid: result.Valid,
				RCAC:  result.RCAC.String(),
				ICAC:  result.ICAC.String(),
				NOC:   result.NOC.String(),
				Error: result.Error,
			}
		}
		doc.Fabrics = append(doc.Fabrics, fs)
	}

	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = json.MarshalIndent(doc, "", "  ")
		data = append(data, '\n')
	default:
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return errors.Trace(err)
	}
	if _, err := w.Write(data); err != nil {
		return errors.Trace(err)
	}

	if out != "" {
		if err := store.Save(out); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
