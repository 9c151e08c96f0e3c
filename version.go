// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Heavily inspired by https://github.com/btcsuite/btcd/blob/master/version.go
// Copyright (C) 2015-2022 The Lightning Network Developers

package zkinv

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// Commit is the commit the binary was built from. It is set with -ldflags
// by release builds and falls back to the vcs revision Go embeds otherwise.
var Commit string

// The version of the client follows semantic versioning 2.0.0.
const (
	AppMajor uint = 0
	AppMinor uint = 1
	AppPatch uint = 0

	// AppStatus is the pre-release status appended to the version.
	AppStatus = "alpha"
)

const (
	// agentName prefixes the user agent sent to the proof server.
	agentName = "zkinv"

	// semverAlphabet is the set of characters allowed in the status part
	// of a version.
	semverAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	// maxInitiatorLen caps the initiator part of the user agent, leaving
	// room for the name and version under the server's 255 byte limit.
	maxInitiatorLen = 150
)

func init() {
	for _, r := range AppStatus {
		if !strings.ContainsRune(semverAlphabet, r) {
			panic(fmt.Errorf("app status rune %q is not in the "+
				"semver alphabet", r))
		}
	}

	if Commit != "" {
		return
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				Commit = setting.Value
			}
		}
	}
}

// Version returns the version of the client along with its commit.
func Version() string {
	return fmt.Sprintf("%s commit=%s", semanticVersion(), Commit)
}

// UserAgent identifies the client towards the proof server. The initiator
// names the component issuing the requests and is stripped down to a safe
// set of characters.
func UserAgent(initiator string) string {
	agent := fmt.Sprintf(
		"%s/v%s/commit=%s", agentName, semanticVersion(), Commit,
	)

	clean := keepRunes(strings.TrimSpace(initiator), semverAlphabet+"-. ")
	if clean == "" {
		return agent
	}

	suffix := ",initiator=" + clean
	if len(suffix) > maxInitiatorLen {
		suffix = suffix[:maxInitiatorLen]
	}

	return agent + suffix
}

// keepRunes drops every rune of str that isn't in alphabet.
func keepRunes(str, alphabet string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(alphabet, r) {
			return r
		}
		return -1
	}, str)
}

// semanticVersion returns the major.minor.patch version with the release
// status, if any, appended.
func semanticVersion() string {
	version := fmt.Sprintf("%d.%d.%d", AppMajor, AppMinor, AppPatch)
	if AppStatus != "" {
		version += "-" + AppStatus
	}

	return version
}
