// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package depgraph

import "errors"

// Sentinel errors for the extraction service.
var (
	// ErrPassFailed indicates a pass extracted its files but could not
	// persist the graph. The in-memory graph is current; the file on disk is
	// the previous one.
	ErrPassFailed = errors.New("extraction pass failed")

	// ErrRelativeRoot indicates the project root was not absolute.
	ErrRelativeRoot = errors.New("project root must be an absolute path")
)
