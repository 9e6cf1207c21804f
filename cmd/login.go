package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli"
	"golang.org/x/term"

	"github.com/stkaddons/addonmgr/pkg/credman"
)

func login(ctx *cli.Context) error {
	username := strings.TrimSpace(ctx.Args().First())
	if username == "" {
		fmt.Print("Addon account username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return cli.NewExitError("addonmgr: read username: "+err.Error(), 1)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return cli.NewExitError("addonmgr: username must not be empty", 2)
	}

	fmt.Print("Password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return cli.NewExitError("addonmgr: read password: "+err.Error(), 1)
	}

	m := credman.NewManager()
	err = m.Save(credman.Credentials{
		Username: username,
		Password: string(raw),
	})
	if err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}
	fmt.Printf("Saved addon account %q.\n", username)
	return nil
}

func logout(ctx *cli.Context) error {
	m := credman.NewManager()
	if _, err := m.Load(); err != nil {
		if errors.Is(err, credman.ErrNotLoggedIn) {
			fmt.Println("No addon account saved.")
			return nil
		}
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}
	if err := m.Delete(); err != nil {
		return cli.NewExitError("addonmgr: "+err.Error(), 1)
	}
	fmt.Println("Addon account forgotten.")
	return nil
}
