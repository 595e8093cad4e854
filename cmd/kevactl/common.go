// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"

	keva "github.com/ik1ne/keva-sub000"
)

func cmdContext() context.Context { return context.Background() }

func requireKey(arg string) keva.Key {
	k, err := keva.NewKey(arg)
	if err != nil {
		fatalf("invalid key %q: %v", arg, err)
	}
	return k
}

func printClip(c keva.Clip) {
	fmt.Println(styled(keyStyle, c.Key.String()), dimStyleRender(c.State.String()))
	switch c.Kind.String() {
	case "text":
		fmt.Println(c.Text)
	case "files":
		for _, name := range c.FileNames {
			fmt.Println(" -", name)
		}
	}
}

func dimStyleRender(s string) string { return styled(dimStyle, "["+s+"]") }
