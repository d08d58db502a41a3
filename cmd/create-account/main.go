// Copyright 2017 Vector Creations Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/seckrv/synapse/clientapi/auth"
	"github.com/seckrv/synapse/internal"
	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup"
	"github.com/seckrv/synapse/setup/process"
	"github.com/seckrv/synapse/userapi/api"
	"github.com/seckrv/synapse/userapi/storage"
)

const usage = `Usage: %s

Creates a new user account on the homeserver.

Example:

	./create-account --config synapse.yaml --username alice --admin

Arguments:

`

var (
	username      = flag.String("username", "", "The localpart of the account to create")
	isAdmin       = flag.Bool("admin", false, "Create an admin account")
	resetPassword = flag.Bool("reset-password", false, "Reset the password of an existing account instead of creating one")
	passwordFile  = flag.String("passwordfile", "", "The file to read the password from, the first line is used")
	passwordStdin = flag.Bool("passwordstdin", false, "Read the password from stdin")
)

func main() {
	name := os.Args[0]
	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, usage, name)
		flag.PrintDefaults()
	}
	cfg := setup.ParseFlags()
	if *username == "" {
		flag.Usage()
		os.Exit(1)
	}

	if err := internal.ValidateUsername(*username, cfg.Global.ServerName); err != nil {
		logrus.WithError(err).Fatal("Invalid username")
	}

	password, err := getPassword(*passwordFile, *passwordStdin, os.Stdin)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to read the password")
	}
	if err = internal.ValidatePassword(password); err != nil {
		logrus.WithError(err).Fatal("Invalid password")
	}

	processCtx := process.NewProcessContext()
	ctx := processCtx.Context()
	db, err := storage.NewUserDatabase(
		ctx,
		sqlutil.NewConnectionManager(),
		&cfg.Global.DatabaseOptions,
		cfg.Global.ServerName,
		cfg.UserAPI.BCryptCost,
	)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to the accounts database")
	}

	accountType := api.AccountTypeUser
	if *isAdmin {
		accountType = api.AccountTypeAdmin
	}

	if *resetPassword {
		if err = db.SetPassword(ctx, *username, cfg.Global.ServerName, password); err != nil {
			logrus.WithError(err).Fatal("Failed to update the password")
		}
		fmt.Printf("Updated password for user @%s:%s\n", *username, cfg.Global.ServerName)
		return
	}

	account, err := db.CreateAccount(ctx, *username, cfg.Global.ServerName, password, "", accountType)
	if err != nil {
		if err == sqlutil.ErrUserExists {
			logrus.Fatalf("Account @%s:%s already exists, use --reset-password to change its password", *username, cfg.Global.ServerName)
		}
		logrus.WithError(err).Fatal("Failed to create the account")
	}

	accessToken, err := auth.GenerateAccessToken()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to generate an access token")
	}
	deviceID := uuid.NewString()
	displayName := "create-account"
	device, err := db.CreateDevice(ctx, account.Localpart, account.ServerName, &deviceID, accessToken, &displayName, "", "")
	if err != nil {
		logrus.WithError(err).Fatal("Failed to create a device for the account")
	}

	fmt.Printf("Created account %s\n", account.UserID)
	fmt.Printf("Access token: %s\n", device.AccessToken)
}

func getPassword(passwordFile string, passwordStdin bool, r io.Reader) (string, error) {
	if passwordFile != "" {
		pw, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("unable to read password file: %w", err)
		}
		return strings.TrimSpace(strings.Split(string(pw), "\n")[0]), nil
	}

	if passwordStdin {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("unable to read password from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	// Prompt twice on the terminal, hiding the input.
	fmt.Print("Enter password: ")
	pass1, err := readPasswordTerm()
	if err != nil {
		return "", err
	}
	fmt.Print("Confirm password: ")
	pass2, err := readPasswordTerm()
	if err != nil {
		return "", err
	}
	if pass1 != pass2 {
		return "", fmt.Errorf("entered passwords don't match")
	}
	return pass1, nil
}

func readPasswordTerm() (string, error) {
	defer fmt.Println()
	if term.IsTerminal(int(os.Stdin.Fd())) {
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		return string(pass), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	return strings.TrimSpace(line), err
}
