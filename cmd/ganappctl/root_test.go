package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := newRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "ganappctl", cmd.Use)
	assert.Contains(t, cmd.Long, "desktop bridge")
}

func TestCommandPresence(t *testing.T) {
	cmd := newRootCommand()
	commands := []string{"status", "queue", "drain", "retry", "notices", "inspect"}

	for _, name := range commands {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			require.NotNil(t, sub)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestNoticesDismissPresence(t *testing.T) {
	cmd := newRootCommand()
	sub, _, err := cmd.Find([]string{"notices", "dismiss"})
	require.NoError(t, err)
	assert.Equal(t, "dismiss", sub.Name())
}

func TestGlobalFlags(t *testing.T) {
	cmd := newRootCommand()

	addrFlag := cmd.PersistentFlags().Lookup("addr")
	require.NotNil(t, addrFlag)
	assert.Equal(t, "http://127.0.0.1:8787", addrFlag.DefValue)

	jsonFlag := cmd.PersistentFlags().Lookup("json")
	require.NotNil(t, jsonFlag)
	assert.Equal(t, "false", jsonFlag.DefValue)
}

func TestQueueCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	queueCmd, _, err := cmd.Find([]string{"queue"})
	require.NoError(t, err)

	statusFlag := queueCmd.Flags().Lookup("status")
	require.NotNil(t, statusFlag)
	assert.Equal(t, "", statusFlag.DefValue)
}

func TestInspectCommandFlags(t *testing.T) {
	cmd := newRootCommand()
	inspectCmd, _, err := cmd.Find([]string{"inspect"})
	require.NoError(t, err)

	dbFlag := inspectCmd.Flags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "./data/ganapp.db", dbFlag.DefValue)
}
