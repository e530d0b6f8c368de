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

package sos

import (
	"encoding/gob"
	"fmt"
	"io"
)

// Save returns a function that writes the solution of a simulation to w
// in gob format.
func Save(w io.Writer) DomainManipulator {
	return func(s *Simulation) error {
		if s.Solution == nil {
			return fmt.Errorf("sos.Simulation.Save: no solution to save")
		}
		e := gob.NewEncoder(w)
		if err := e.Encode(s.Solution); err != nil {
			return fmt.Errorf("sos.Simulation.Save: %v", err)
		}
		return nil
	}
}

// Load returns a function that loads a previously saved solution into a
// simulation and marks it as done.
func Load(r io.Reader) DomainManipulator {
	return func(s *Simulation) error {
		dec := gob.NewDecoder(r)
		sol := new(Solution)
		if err := dec.Decode(sol); err != nil {
			return fmt.Errorf("sos.Simulation.Load: %v", err)
		}
		if sol.Field == nil || sol.Field.DenseArray == nil || sol.Grid == nil {
			return fmt.Errorf("sos.Simulation.Load: incomplete solution")
		}
		sol.Field.Fix()
		sol.Field.written = make([]bool, sol.Field.Shape[0])
		for m := 0; m < sol.Field.Finalized; m++ {
			sol.Field.written[m] = true
		}
		s.Solution = sol
		s.Done = true
		return nil
	}
}
