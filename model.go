// Package sparsenet is a structured prediction engine over sparse hashed features.
//
// A Model turns contexts of atoms into features with a list of templates, embeds the features
// with sparse embedding tables, and scores the classes with a feed forward network.
package sparsenet

import (
	"bytes"
	"fmt"
	"io"
	"log"

	"github.com/gorgonia/sparsenet/features"
	"github.com/gorgonia/sparsenet/nn"
	"github.com/pkg/errors"
)

// Model is the top level structure and the entry point of the API.
// It wraps a feature extractor and the network that scores its features.
type Model struct {
	Statistics

	name string
	net  *nn.Network
	ext  *features.Extractor

	buf    bytes.Buffer
	logger *log.Logger
}

// New creates a Model. It panics if the configuration is not valid.
func New(conf Config) *Model {
	if !conf.NNConf.IsValid() {
		panic("NNConf is not valid. Unable to proceed")
	}
	net, err := nn.New(conf.NNConf)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	ext, err := features.NewExtractor(conf.Templates, conf.Tables)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	for i, t := range conf.Tables {
		if t >= net.Embeddings().NrTable() {
			panic(fmt.Sprintf("%+v", errors.Errorf("template %d feeds table %d. There are %d tables", i, t, net.Embeddings().NrTable())))
		}
	}

	retVal := &Model{
		Statistics: makeStatistics(),
		name:       conf.Name,
		net:        net,
		ext:        ext,
	}
	retVal.logger = log.New(&retVal.buf, "", log.Ltime)
	return retVal
}

// Name returns the name of the model.
func (m *Model) Name() string { return m.name }

// Network returns the underlying network.
func (m *Model) Network() *nn.Network { return m.net }

// NewExample creates an example over the atoms, with its features extracted.
func (m *Model) NewExample(atoms []uint64) *nn.Example {
	eg := m.net.NewExample()
	eg.Atoms = append(eg.Atoms, atoms...)
	eg.Features = m.ext.Extract(eg.Atoms, eg.Features)
	return eg
}

// Predict scores the classes for the atoms. A nil valid marks every class valid.
// The caller should Release the returned example.
func (m *Model) Predict(atoms []uint64, valid []bool) *nn.Example {
	eg := m.NewExample(atoms)
	eg.SetValid(valid)
	m.net.Predict(eg)
	return eg
}

// Learn trains on the instances as a single batch and returns the summed loss.
func (m *Model) Learn(instances []Instance, loss nn.LossFunc) float32 {
	egs := make([]*nn.Example, len(instances))
	for i, inst := range instances {
		eg := m.NewExample(inst.Atoms)
		eg.Input = inst.Input
		eg.SetCosts(inst.Costs)
		eg.SetValid(inst.Valid)
		egs[i] = eg
	}
	b := m.net.NewBatch(egs...)
	defer b.Release()

	retVal := m.net.Train(b, loss)
	var correct int
	for _, eg := range egs {
		if eg.Guess >= 0 && eg.Cost == 0 {
			correct++
		}
	}
	m.update(retVal, correct, len(egs))
	m.logger.Printf("Batch %d: %d examples, loss %v, %d correct. %d embedding rows", m.Batches(), len(egs), retVal, correct, m.net.Embeddings().Rows())
	return retVal
}

// Prune removes the embedding rows touched in fewer than minFreq batches. It returns the
// number of rows removed.
func (m *Model) Prune(minFreq uint32) (removed int) {
	emb := m.net.Embeddings()
	for i := 0; i < emb.NrTable(); i++ {
		removed += emb.Prune(i, minFreq)
	}
	m.logger.Printf("Pruned %d rows touched fewer than %d times", removed, minFreq)
	return
}

// Log writes the execution log of the model.
func (m *Model) Log(w io.Writer) {
	fmt.Fprint(w, m.buf.String())
	if s := m.net.Log(); s != "" {
		fmt.Fprintln(w, "\nNetwork:")
		fmt.Fprintln(w, s)
	}
}
