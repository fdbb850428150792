package optim

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var (
	registryLock sync.RWMutex
	registry     = map[string]func() Rule{
		"sgd":     func() Rule { return SGD{} },
		"adagrad": func() Rule { return Adagrad{} },
		"adam":    func() Rule { return Adam{} },
	}
)

// Register makes an update rule available by name.
func Register(name string, factory func() Rule) error {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, ok := registry[name]; ok {
		return errors.Errorf("update rule %q already exists", name)
	}
	if factory == nil {
		return errors.Errorf("update rule %q has a nil factory", name)
	}
	registry[name] = factory
	return nil
}

// Get returns a new instance of the named update rule.
func Get(name string) (Rule, error) {
	registryLock.RLock()
	factory, ok := registry[name]
	registryLock.RUnlock()
	if !ok {
		return nil, errors.Errorf("could not find update rule %q", name)
	}
	retVal := factory()
	if retVal == nil {
		return nil, errors.Errorf("update rule %q has a factory that returned nil", name)
	}
	return retVal, nil
}

// Rules lists the registered update rules.
func Rules() []string {
	registryLock.RLock()
	retVal := make([]string, 0, len(registry))
	for name := range registry {
		retVal = append(retVal, name)
	}
	registryLock.RUnlock()
	sort.Strings(retVal)
	return retVal
}
