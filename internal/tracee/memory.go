/*
 * Copyright (C) 2019 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package tracee

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// hostEndian is little-endian on every arch golang.org/x/sys/unix exposes
// ptrace on (amd64, arm64, ...); the tracee's memory is read back in its own
// native byte order.
var hostEndian = binary.LittleEndian

// wordSize is the width of a single ptrace PEEKDATA/POKEDATA transfer on
// amd64.
const wordSize = 8

// PeekWord reads one 8-byte word from the tracee's address space at addr.
func PeekWord(pid int, addr uintptr) (uint64, error) {
	var word [wordSize]byte
	n, err := unix.PtracePeekData(pid, addr, word[:])
	if err != nil {
		return 0, fmt.Errorf("peekdata at %#x: %w", addr, err)
	}
	if n != wordSize {
		return 0, fmt.Errorf("peekdata at %#x: short read of %d bytes", addr, n)
	}
	return hostEndian.Uint64(word[:]), nil
}

// PokeWord writes one 8-byte word into the tracee's address space at addr.
func PokeWord(pid int, addr uintptr, value uint64) error {
	var word [wordSize]byte
	hostEndian.PutUint64(word[:], value)
	n, err := unix.PtracePokeData(pid, addr, word[:])
	if err != nil {
		return fmt.Errorf("pokedata at %#x: %w", addr, err)
	}
	if n != wordSize {
		return fmt.Errorf("pokedata at %#x: short write of %d bytes", addr, n)
	}
	return nil
}

// PokeFourBytes overwrites only the first four bytes of the word at addr,
// leaving the other four bytes of that word untouched. This is how a single
// struct field (e.g. st_mode inside a struct stat) is patched without
// clobbering the fields packed alongside it in the same word.
func PokeFourBytes(pid int, addr uintptr, value uint32) error {
	existing, err := PeekWord(pid, addr)
	if err != nil {
		return err
	}
	var word [wordSize]byte
	hostEndian.PutUint64(word[:], existing)
	hostEndian.PutUint32(word[:4], value)
	return PokeWord(pid, addr, hostEndian.Uint64(word[:]))
}

// PeekString reads a NUL-terminated string from the tracee's address space
// starting at addr, one word at a time, stopping at the first zero byte
// encountered within a word.
func PeekString(pid int, addr uintptr) (string, error) {
	var out []byte
	for i := uintptr(0); ; i += wordSize {
		word, err := PeekWord(pid, addr+i)
		if err != nil {
			return "", err
		}
		var buf [wordSize]byte
		hostEndian.PutUint64(buf[:], word)
		for _, b := range buf {
			if b == 0 {
				return string(out), nil
			}
			out = append(out, b)
		}
	}
}

// PeekStringArray reads a NUL-terminated, NULL-pointer-terminated array of
// C strings (as passed to execve's argv/envp) from the tracee's address
// space starting at addr, which must point at the first element of the
// pointer array. The array's own first element (argv[0], the executable
// path already read separately by the caller) is skipped.
func PeekStringArray(pid int, addr uintptr) ([]string, error) {
	var out []string
	for i, skippedFirst := uintptr(0), false; ; i += wordSize {
		ptr, err := PeekWord(pid, addr+i)
		if err != nil {
			return nil, err
		}
		if ptr == 0 {
			return out, nil
		}
		if !skippedFirst {
			skippedFirst = true
			continue
		}
		s, err := PeekString(pid, uintptr(ptr))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}

// StringToData encodes s as a NUL-padded sequence of 8-byte words, suitable
// for writing back into the tracee with PokeString. maxSize bounds the
// number of bytes available at the destination; encoding a string whose
// encoded length (including the terminating NUL) would exceed maxSize is an
// error, since the caller must not write past the buffer the tracee handed
// the kernel.
func StringToData(s string, maxSize int) ([]byte, error) {
	b := []byte(s)
	if len(b)+1 > maxSize {
		return nil, fmt.Errorf("string_to_data: string too long")
	}
	numberOfWords := len(b)/wordSize + 1
	data := make([]byte, numberOfWords*wordSize)
	copy(data, b)
	return data, nil
}

// PokeString writes s, NUL-terminated, into the tracee's address space at
// addr. maxSize is the size in bytes of the destination buffer the tracee
// owns at addr; s (plus its terminating NUL) must fit within it.
func PokeString(pid int, addr uintptr, s string, maxSize int) error {
	data, err := StringToData(s, maxSize)
	if err != nil {
		return err
	}
	for i := 0; i < len(data); i += wordSize {
		if err := PokeWord(pid, addr+uintptr(i), hostEndian.Uint64(data[i:i+wordSize])); err != nil {
			return err
		}
	}
	return nil
}

// PokeSingleWordString is PokeString with a destination buffer of exactly
// one word (8 bytes, 7 usable plus the terminating NUL): the shape the
// mocked execve path is written back in, since it is written over the bytes
// of the original executable-path string, whose buffer is only assumed to
// hold one word.
func PokeSingleWordString(pid int, addr uintptr, s string) error {
	return PokeString(pid, addr, s, wordSize)
}
