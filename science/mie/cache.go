/*
Copyright © 2019 the SOS authors.
This file is part of SOS.

SOS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SOS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SOS.  If not, see <http://www.gnu.org/licenses/>.
*/

package mie

import (
	"fmt"
	"sync"

	"github.com/golang/groupcache/lru"
)

// particleCache holds single-particle results for one set of scattering
// angles, so that components or wavelengths sharing a refractive index and
// size parameter don't recompute the Mie series.
type particleCache struct {
	mu    sync.Mutex
	cache *lru.Cache
	hits  int
}

func newParticleCache(maxEntries int) *particleCache {
	return &particleCache{cache: lru.New(maxEntries)}
}

func particleKey(x float64, m complex128) string {
	return fmt.Sprintf("%.12g_%.12g_%.12g", x, real(m), imag(m))
}

func (c *particleCache) get(x float64, m complex128) (*Scattering, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.cache.Get(particleKey(x, m))
	if !ok {
		return nil, false
	}
	c.hits++
	return v.(*Scattering), true
}

func (c *particleCache) add(s *Scattering, m complex128) {
	c.mu.Lock()
	c.cache.Add(particleKey(s.X, m), s)
	c.mu.Unlock()
}
