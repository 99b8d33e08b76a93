/*
Copyright © 2013 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP. If not, see <http://www.gnu.org/licenses/>.
*/

package ef5lake

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// warnOnceSet emits a single logrus warning per distinct key for the
// lifetime of the process, covering soft failures such as a lake snap
// miss or a state-file mismatch: these conditions are expected to recur
// every step, and logging them every step would drown the log.
type warnOnceSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

var diagnosticWarnings = warnOnceSet{seen: make(map[string]bool)}

func (s *warnOnceSet) warn(key string, fields logrus.Fields, format string, args ...interface{}) {
	s.mu.Lock()
	already := s.seen[key]
	s.seen[key] = true
	s.mu.Unlock()
	if already {
		return
	}
	entry := logrus.WithFields(fields)
	entry.Warnf(format, args...)
}
