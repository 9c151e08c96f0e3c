package invcfg

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	"github.com/jessevdk/go-flags"
	"github.com/lightninglabs/zkinv"
	"github.com/lightninglabs/zkinv/fn"
	"github.com/lightninglabs/zkinv/invdb"
	"github.com/lightninglabs/zkinv/invfreighter"
	"github.com/lightninglabs/zkinv/prover"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/signal"
)

const (
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "zkinv.log"
	defaultConfigFileName = "zkinv.conf"
	defaultKeyFileName    = "signer.key"
	defaultStateFileName  = "states.json"

	// The client shares stdout with command output, so only warnings and
	// errors are printed by default.
	defaultLogLevel = "warn"

	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	// defaultProverURL is the address the proof server listens on by
	// default.
	defaultProverURL = "http://localhost:3001"

	// defaultSyncInterval is the default interval at which the cached
	// on-chain records of all local inventories are refreshed.
	defaultSyncInterval = 5 * time.Minute

	// DatabaseBackendSqlite is the name of the SQLite database backend.
	DatabaseBackendSqlite = "sqlite"

	// DatabaseBackendPostgres is the name of the Postgres database backend.
	DatabaseBackendPostgres = "postgres"

	// StateStoreDB keeps the secret inventory states in the database.
	StateStoreDB = "db"

	// StateStoreFile keeps the secret inventory states in a JSON file.
	StateStoreFile = "file"

	// LedgerBackendDevnet is a ledger kept in the client's own database.
	LedgerBackendDevnet = "devnet"
)

var (
	// DefaultZkinvDir is the default directory where the client tries to
	// find its configuration file and store its data. This is a directory
	// in the user's application data, for example:
	//   C:\Users\<username>\AppData\Local\Zkinv on Windows
	//   ~/.zkinv on Linux
	//   ~/Library/Application Support/Zkinv on MacOS
	DefaultZkinvDir = btcutil.AppDataDir("zkinv", false)

	// DefaultConfigFile is the default full path of the client's
	// configuration file.
	DefaultConfigFile = filepath.Join(DefaultZkinvDir, defaultConfigFileName)

	defaultDataDir = filepath.Join(DefaultZkinvDir, defaultDataDirname)
	defaultLogDir  = filepath.Join(DefaultZkinvDir, defaultLogDirname)

	defaultSqliteDatabaseFileName = "zkinv.db"

	// defaultSqliteDatabasePath is the default path under which we store
	// the SQLite database file.
	defaultSqliteDatabasePath = filepath.Join(
		defaultDataDir, defaultSqliteDatabaseFileName,
	)

	defaultKeyFilePath   = filepath.Join(defaultDataDir, defaultKeyFileName)
	defaultStateFilePath = filepath.Join(defaultDataDir, defaultStateFileName)
)

// ProverConfig houses the options of the proof server connection.
type ProverConfig struct {
	URL string `long:"url" description:"Base URL of the proof server"`

	RequestTimeout time.Duration `long:"requesttimeout" description:"Timeout of a single proof request"`

	MaxConcurrency int `long:"maxconcurrency" description:"Maximum number of proofs requested at once, 0 for no limit"`
}

// LedgerConfig houses the options of the ledger the inventories live on.
type LedgerConfig struct {
	Backend string `long:"backend" description:"The ledger backend to use" choice:"devnet"`
}

// SignerConfig houses the options of the transaction signer.
type SignerConfig struct {
	KeyFile string `long:"keyfile" description:"Path to the hex encoded private key that owns the inventories"`
}

// SyncConfig houses the options of the on-chain record sync.
type SyncConfig struct {
	Interval time.Duration `long:"interval" description:"How often the cached records of all local inventories are refreshed"`

	Retry fn.RetryConfig `group:"retry" namespace:"retry"`
}

// Config is the main config of the zkinv client.
type Config struct {
	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	ZkinvDir   string `long:"zkinvdir" description:"The base directory that contains the client's data, logs, configuration file, etc."`
	ConfigFile string `long:"configfile" description:"Path to configuration file"`

	DataDir        string `long:"datadir" description:"The directory to store the client's data within"`
	LogDir         string `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	StateStore string `long:"statestore" description:"Where the secret inventory states are kept" choice:"db" choice:"file"`
	StateFile  string `long:"statefile" description:"Path of the state file if statestore=file"`

	Prover *ProverConfig `group:"prover" namespace:"prover"`
	Ledger *LedgerConfig `group:"ledger" namespace:"ledger"`
	Signer *SignerConfig `group:"signer" namespace:"signer"`
	Sync   *SyncConfig   `group:"sync" namespace:"sync"`

	DatabaseBackend string                `long:"databasebackend" description:"The database backend to use for storing all client data." choice:"sqlite" choice:"postgres"`
	Sqlite          *invdb.SqliteConfig   `group:"sqlite" namespace:"sqlite"`
	Postgres        *invdb.PostgresConfig `group:"postgres" namespace:"postgres"`

	// LogWriter is the root logger that all of the client's subloggers
	// are hooked up to.
	LogWriter *build.RotatingLogWriter
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		ZkinvDir:       DefaultZkinvDir,
		ConfigFile:     DefaultConfigFile,
		DataDir:        defaultDataDir,
		DebugLevel:     defaultLogLevel,
		LogDir:         defaultLogDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		StateStore:     StateStoreDB,
		StateFile:      defaultStateFilePath,
		Prover: &ProverConfig{
			URL:            defaultProverURL,
			RequestTimeout: prover.DefaultRequestTimeout,
		},
		Ledger: &LedgerConfig{
			Backend: LedgerBackendDevnet,
		},
		Signer: &SignerConfig{
			KeyFile: defaultKeyFilePath,
		},
		Sync: &SyncConfig{
			Interval: defaultSyncInterval,
			Retry:    fn.DefaultRetryConfig(),
		},
		DatabaseBackend: DatabaseBackendSqlite,
		Sqlite: &invdb.SqliteConfig{
			DatabaseFileName: defaultSqliteDatabasePath,
		},
		Postgres: &invdb.PostgresConfig{
			Host:               "localhost",
			Port:               5432,
			MaxOpenConnections: 10,
		},
		LogWriter: build.NewRotatingLogWriter(),
	}
}

// LoadConfig initializes and parses the config using a config file and the
// given command line overrides.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Locate the config file from the base directory or an explicit path
//  3. Load configuration file overwriting defaults with any specified options
//  4. Apply the command line overrides
func LoadConfig(zkinvDir, configFile string, interceptor signal.Interceptor,
	overrides ...func(*Config)) (*Config, btclog.Logger, error) {

	cfg := DefaultConfig()
	if zkinvDir != "" {
		cfg.ZkinvDir = zkinvDir
	}

	// If the config file path has not been modified by the user, then
	// we'll use the default config file path. However, if the user has
	// modified their zkinvdir, then we should assume they intend to use
	// the config file within it.
	configFileDir := CleanAndExpandPath(cfg.ZkinvDir)
	configFilePath := CleanAndExpandPath(DefaultConfigFile)
	switch {
	// User specified an explicit config file, so we check that it does
	// exist under that path to avoid surprises.
	case configFile != "":
		configFilePath = CleanAndExpandPath(configFile)
		if !fileExists(configFilePath) {
			return nil, nil, fmt.Errorf("specified config file "+
				"does not exist in %s", configFilePath)
		}

	// User specified --zkinvdir but no --configfile. Update the config
	// file path to the zkinv config directory, but don't require it to
	// exist.
	case configFileDir != DefaultZkinvDir:
		configFilePath = filepath.Join(
			configFileDir, defaultConfigFileName,
		)
	}
	cfg.ConfigFile = configFilePath

	// Next, load any additional configuration options from the file.
	var configFileError error
	fileParser := flags.NewParser(&cfg, flags.Default)
	err := flags.NewIniParser(fileParser).ParseFile(configFilePath)
	if err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		if _, ok := err.(*flags.IniError); ok {
			return nil, nil, err
		}

		configFileError = err
	}

	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s --help to show usage", appName)

	// Finally, apply the command line options to ensure they take
	// precedence.
	for _, override := range overrides {
		override(&cfg)
	}

	// Make sure everything we just loaded makes sense.
	cleanCfg, cfgLogger, err := ValidateConfig(cfg, interceptor)
	if err != nil {
		// Log help message in case of usage error.
		if _, ok := err.(*usageError); ok {
			_, _ = fmt.Fprintln(os.Stderr, usageMessage)
		}

		// The logging system might not yet be initialized, so we also
		// write to stderr to make sure the error appears somewhere.
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		if cfgLogger != nil {
			cfgLogger.Warnf("Error validating config: %v", err)
		}
		return nil, nil, err
	}

	// Note about a missing config file only after all other
	// configuration is done.
	if configFileError != nil {
		cfgLogger.Debugf("%v", configFileError)
	}

	return cleanCfg, cfgLogger, nil
}

// usageError is an error type that signals a problem with the supplied flags.
type usageError struct {
	err error
}

// Error returns the error string.
//
// NOTE: This is part of the error interface.
func (u *usageError) Error() string {
	return u.err.Error()
}

// ValidateConfig check the given configuration to be sane. This makes sure no
// illegal values or combination of values are set. All file system paths are
// normalized. The cleaned up config is returned on success.
func ValidateConfig(cfg Config, interceptor signal.Interceptor) (*Config,
	btclog.Logger, error) {

	// If the provided zkinv directory is not the default, we'll modify the
	// path to all of the files and directories that will live within it.
	zkinvDir := CleanAndExpandPath(cfg.ZkinvDir)
	if zkinvDir != DefaultZkinvDir {
		cfg.DataDir = filepath.Join(zkinvDir, defaultDataDirname)
		cfg.LogDir = filepath.Join(zkinvDir, defaultLogDirname)
	}

	funcName := "ValidateConfig"
	mkErr := func(format string, args ...interface{}) error {
		return fmt.Errorf(funcName+": "+format, args...)
	}
	makeDirectory := func(dir string) error {
		err := os.MkdirAll(dir, 0700)
		if err != nil {
			// Show a nicer error message if it's because a symlink
			// is linked to a directory that does not exist
			// (probably because it's not mounted).
			if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
				link, lerr := os.Readlink(e.Path)
				if lerr == nil {
					str := "is symlink %s -> %s mounted?"
					err = fmt.Errorf(str, e.Path, link)
				}
			}

			str := "Failed to create zkinv directory '%s': %v"
			return mkErr(str, dir, err)
		}

		return nil
	}

	// As soon as we're done parsing configuration options, ensure all
	// paths to directories and files are cleaned and expanded before
	// attempting to use them later on.
	cfg.DataDir = CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)

	// Files that weren't placed explicitly follow the data directory.
	rebase := func(path, defaultPath, name string) string {
		if path == defaultPath {
			return filepath.Join(cfg.DataDir, name)
		}

		return CleanAndExpandPath(path)
	}
	cfg.Sqlite.DatabaseFileName = rebase(
		cfg.Sqlite.DatabaseFileName, defaultSqliteDatabasePath,
		defaultSqliteDatabaseFileName,
	)
	cfg.Signer.KeyFile = rebase(
		cfg.Signer.KeyFile, defaultKeyFilePath, defaultKeyFileName,
	)
	cfg.StateFile = rebase(
		cfg.StateFile, defaultStateFilePath, defaultStateFileName,
	)

	switch cfg.DatabaseBackend {
	case DatabaseBackendSqlite, DatabaseBackendPostgres:
	default:
		return nil, nil, &usageError{mkErr("unknown database "+
			"backend: %v", cfg.DatabaseBackend)}
	}

	switch cfg.StateStore {
	case StateStoreDB, StateStoreFile:
	default:
		return nil, nil, &usageError{mkErr("unknown state store: %v",
			cfg.StateStore)}
	}

	if cfg.Ledger.Backend != LedgerBackendDevnet {
		return nil, nil, &usageError{mkErr("unknown ledger backend: "+
			"%v", cfg.Ledger.Backend)}
	}

	if cfg.Prover.URL == "" {
		return nil, nil, &usageError{mkErr("prover url must be set")}
	}
	if cfg.Prover.MaxConcurrency < 0 {
		return nil, nil, &usageError{mkErr("prover max concurrency "+
			"must not be negative")}
	}
	if cfg.Sync.Interval <= 0 {
		return nil, nil, &usageError{mkErr("sync interval must be " +
			"positive")}
	}

	// Create the zkinv directory and all other sub-directories if they
	// don't already exist. This makes sure that directory trees are also
	// created for files that point to outside the zkinvdir.
	dirs := []string{
		zkinvDir, cfg.DataDir, filepath.Dir(cfg.Signer.KeyFile),
		filepath.Dir(cfg.StateFile),
	}
	if cfg.DatabaseBackend == DatabaseBackendSqlite {
		dirs = append(dirs, filepath.Dir(cfg.Sqlite.DatabaseFileName))
	}
	for _, dir := range dirs {
		if err := makeDirectory(dir); err != nil {
			return nil, nil, err
		}
	}

	// A log writer must be passed in, otherwise we can't function and would
	// run into a panic later on.
	if cfg.LogWriter == nil {
		return nil, nil, mkErr("log writer missing in config")
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems",
			cfg.LogWriter.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize logging at the default logging level.
	zkinv.SetupLoggers(cfg.LogWriter, interceptor)
	err := cfg.LogWriter.InitLogRotator(
		filepath.Join(cfg.LogDir, defaultLogFilename),
		cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
	if err != nil {
		str := "log rotation setup failed: %v"
		return nil, nil, mkErr(str, err)
	}

	cfgLogger := cfg.LogWriter.GenSubLogger("CONF", nil)

	// Parse, validate, and set debug log level(s).
	err = build.ParseAndSetDebugLevels(cfg.DebugLevel, cfg.LogWriter)
	if err != nil {
		str := "error parsing debug level: %v"
		return nil, cfgLogger, &usageError{mkErr(str, err)}
	}

	// All good, return the sanitized result.
	return &cfg, cfgLogger, nil
}

// schedulerConfig returns the proof scheduler settings of the config.
func (c *Config) schedulerConfig() invfreighter.SchedulerConfig {
	return invfreighter.SchedulerConfig{
		ProofTimeout:   c.Prover.RequestTimeout,
		MaxConcurrency: c.Prover.MaxConcurrency,
	}
}

// fileExists reports whether the named file or directory exists.
// This function is taken from https://github.com/btcsuite/btcd
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
// This function is taken from https://github.com/btcsuite/btcd
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
