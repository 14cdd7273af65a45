// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package storage

import (
	"sort"
	"sync"

	"github.com/RobotecAI/rosbag2/bag"

	"github.com/pkg/errors"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Plugin{}
)

// Register registers a storage backend under its identifier.
//
// Backends typically Register themselves from an init function. Registering
// two backends with the same identifier panics; this is a programming error.
func Register(p Plugin) {
	registryMu.Lock()
	defer registryMu.Unlock()

	id := p.Identifier()
	if _, ok := registry[id]; ok {
		panic(errors.Errorf("storage backend %q registered twice", id))
	}
	registry[id] = p
}

// Lookup returns the backend registered under identifier.
//
// If no backend matches, Lookup returns an error wrapping
// bag.ErrUnsupportedStorage.
func Lookup(identifier string) (Plugin, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	p, ok := registry[identifier]
	if !ok {
		return nil, errors.Wrapf(bag.ErrUnsupportedStorage, "%q (available: %v)",
			identifier, identifiersLocked())
	}
	return p, nil
}

// Identifiers returns the identifiers of all registered backends, sorted.
func Identifiers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return identifiersLocked()
}

func identifiersLocked() []string {
	ids := make([]string, 0, len(registry))
	for id := range registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
