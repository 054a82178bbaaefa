package configuration

import (
	"bytes"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"gopkg.in/yaml.v2"
)

// configStruct is a canonical example configuration, which should map to configYamlV0_1
var configStruct = Configuration{
	Version: "0.1",
	Log: Log{
		Level:  "info",
		Fields: map[string]interface{}{"environment": "test"},
	},
	Stores: Stores{
		"main": Storage{
			"sparqlhttp": Parameters{
				"endpoint":     "http://localhost:3030/ds/data",
				"strictdelete": true,
				"timeout":      "5s",
				"username":     "alice",
			},
		},
		"scratch": Storage{
			"inmemory": Parameters{},
		},
	},
	Client: Client{
		Timeout: 10 * time.Second,
		Retries: 3,
	},
}

func init() {
	configStruct.HTTP.Addr = ":8080"
	configStruct.HTTP.Headers = http.Header{
		"X-Content-Type-Options": []string{"nosniff"},
	}
	configStruct.HTTP.Debug.Addr = ":5001"
	configStruct.HTTP.Debug.Prometheus.Enabled = true
	configStruct.HTTP.Debug.Prometheus.Path = "/metrics"
}

// configYamlV0_1 is a Version 0.1 yaml document representing configStruct
const configYamlV0_1 = `
version: 0.1
log:
  level: info
  fields:
    environment: test
stores:
  main:
    sparqlhttp:
      endpoint: http://localhost:3030/ds/data
      strictdelete: true
      timeout: 5s
      username: alice
  scratch: inmemory
http:
  addr: :8080
  headers:
    X-Content-Type-Options: [nosniff]
  debug:
    addr: :5001
    prometheus:
      enabled: true
      path: /metrics
client:
  timeout: 10s
  retries: 3
`

type ConfigSuite struct {
	suite.Suite
	expectedConfig *Configuration
}

func TestConfigSuite(t *testing.T) {
	suite.Run(t, new(ConfigSuite))
}

func (suite *ConfigSuite) SetupTest() {
	suite.expectedConfig = copyConfig(configStruct)
}

// TestMarshalRoundtrip validates that configStruct can be marshaled and
// unmarshaled without changing any parameters
func (suite *ConfigSuite) TestMarshalRoundtrip() {
	configBytes, err := yaml.Marshal(suite.expectedConfig)
	suite.Require().NoError(err)
	config, err := Parse(bytes.NewReader(configBytes))
	suite.T().Log(string(configBytes))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseSimple validates that configYamlV0_1 can be parsed into a struct
// matching configStruct
func (suite *ConfigSuite) TestParseSimple() {
	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseDefaults validates that an unset log level and client timeout
// receive their defaults.
func (suite *ConfigSuite) TestParseDefaults() {
	config, err := Parse(bytes.NewReader([]byte("version: 0.1\nstores:\n  main: inmemory\n")))
	suite.Require().NoError(err)
	suite.Equal(Loglevel("info"), config.Log.Level)
	suite.Equal(DefaultClientTimeout, config.Client.Timeout)
	suite.Equal(Stores{"main": Storage{"inmemory": Parameters{}}}, config.Stores)
}

// TestParseIncomplete validates that a configuration without stores cannot
// be parsed unless the environment provides them.
func (suite *ConfigSuite) TestParseIncomplete() {
	incompleteConfigYaml := "version: 0.1"
	_, err := Parse(bytes.NewReader([]byte(incompleteConfigYaml)))
	suite.Require().Error(err)

	suite.T().Setenv("GRAPHSTORE_STORES_MAIN", "inmemory")

	config, err := Parse(bytes.NewReader([]byte(incompleteConfigYaml)))
	suite.Require().NoError(err)
	suite.Equal(Stores{"main": Storage{"inmemory": Parameters{}}}, config.Stores)
}

// TestParseMultipleDrivers validates that a store naming two drivers is
// rejected.
func (suite *ConfigSuite) TestParseMultipleDrivers() {
	_, err := Parse(bytes.NewReader([]byte("version: 0.1\nstores:\n  main:\n    inmemory: {}\n    datasetfile: {}\n")))
	suite.Require().Error(err)
}

// TestParseWithDifferentEnvStoreParams validates that providing environment
// variables that change and add to the parameters of a store will change and
// add parameters to the parsed Configuration struct
func (suite *ConfigSuite) TestParseWithDifferentEnvStoreParams() {
	suite.expectedConfig.Stores["main"].setParameter("endpoint", "http://example.org/data")
	suite.expectedConfig.Stores["main"].setParameter("strictdelete", false)
	suite.expectedConfig.Stores["main"].setParameter("newparam", "some Value")

	suite.T().Setenv("GRAPHSTORE_STORES_MAIN_SPARQLHTTP_ENDPOINT", "http://example.org/data")
	suite.T().Setenv("GRAPHSTORE_STORES_MAIN_SPARQLHTTP_STRICTDELETE", "false")
	suite.T().Setenv("GRAPHSTORE_STORES_MAIN_SPARQLHTTP_NEWPARAM", "some Value")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseWithDifferentEnvStoreType validates that providing an environment
// variable that changes the driver of a store will be reflected in the parsed
// Configuration struct
func (suite *ConfigSuite) TestParseWithDifferentEnvStoreType() {
	suite.expectedConfig.Stores["main"] = Storage{"inmemory": Parameters{}}

	suite.T().Setenv("GRAPHSTORE_STORES_MAIN", "inmemory")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseWithDifferentEnvLoglevel validates that providing an environment variable defining the
// log level will override the value provided in the yaml document
func (suite *ConfigSuite) TestParseWithDifferentEnvLoglevel() {
	suite.expectedConfig.Log.Level = "error"

	suite.T().Setenv("GRAPHSTORE_LOG_LEVEL", "error")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseWithEnvClient validates that client settings can come from the
// environment.
func (suite *ConfigSuite) TestParseWithEnvClient() {
	suite.expectedConfig.Client.Retries = 5
	suite.expectedConfig.Client.Proxy = "http://proxy.example.org:3128"

	suite.T().Setenv("GRAPHSTORE_CLIENT_RETRIES", "5")
	suite.T().Setenv("GRAPHSTORE_CLIENT_PROXY", "http://proxy.example.org:3128")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseInvalidLoglevel validates that the parser will fail to parse a
// configuration if the loglevel is malformed
func (suite *ConfigSuite) TestParseInvalidLoglevel() {
	invalidConfigYaml := "version: 0.1\nlog:\n  level: derp\nstores:\n  main: inmemory"
	_, err := Parse(bytes.NewReader([]byte(invalidConfigYaml)))
	suite.Require().Error(err)

	suite.T().Setenv("GRAPHSTORE_LOG_LEVEL", "derp")

	_, err = Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseInvalidVersion validates that the parser will fail to parse a newer configuration
// version than the CurrentVersion
func (suite *ConfigSuite) TestParseInvalidVersion() {
	suite.expectedConfig.Version = MajorMinorVersion(CurrentVersion.Major(), CurrentVersion.Minor()+1)
	configBytes, err := yaml.Marshal(suite.expectedConfig)
	suite.Require().NoError(err)
	_, err = Parse(bytes.NewReader(configBytes))
	suite.Require().Error(err)

	_, err = Parse(bytes.NewReader([]byte("version: one")))
	suite.Require().Error(err)
}

// TestParseExtraneousVars validates that environment variables referring to
// nonexistent variables don't cause side effects.
func (suite *ConfigSuite) TestParseExtraneousVars() {
	suite.T().Setenv("GRAPHSTORE_DUCKS", "quack")
	suite.T().Setenv("GRAPHSTORE_REPORTING_ASDF", "ghjk")

	config, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
	suite.Require().Equal(suite.expectedConfig, config)
}

// TestParseEnvWrongTypeMap validates that incorrectly attempting to unmarshal a
// string over existing map fails.
func (suite *ConfigSuite) TestParseEnvWrongTypeMap() {
	suite.T().Setenv("GRAPHSTORE_STORES_MAIN_SPARQLHTTP", "somestring")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseEnvWrongTypeStruct validates that incorrectly attempting to
// unmarshal a string into a struct fails.
func (suite *ConfigSuite) TestParseEnvWrongTypeStruct() {
	suite.T().Setenv("GRAPHSTORE_CLIENT", "somestring")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().Error(err)
}

// TestParseEnvMany tests several environment variable overrides.
// The result is not checked - the goal of this test is to detect panics
// from misuse of reflection.
func (suite *ConfigSuite) TestParseEnvMany() {
	suite.T().Setenv("GRAPHSTORE_VERSION", "0.1")
	suite.T().Setenv("GRAPHSTORE_LOG_LEVEL", "debug")
	suite.T().Setenv("GRAPHSTORE_LOG_FORMATTER", "json")
	suite.T().Setenv("GRAPHSTORE_LOG_FIELDS", "abc: xyz")
	suite.T().Setenv("GRAPHSTORE_LOG_FIELDS_SERVICE", "graphstore")
	suite.T().Setenv("GRAPHSTORE_HTTP_HEADERS_X", "[y]")
	suite.T().Setenv("GRAPHSTORE_STORES_EXTRA", "inmemory")
	suite.T().Setenv("GRAPHSTORE_CLIENT_TIMEOUT", "1m")

	_, err := Parse(bytes.NewReader([]byte(configYamlV0_1)))
	suite.Require().NoError(err)
}

func checkStructs(tt *testing.T, t reflect.Type, structsChecked map[string]struct{}) {
	tt.Helper()

	for t.Kind() == reflect.Ptr || t.Kind() == reflect.Map || t.Kind() == reflect.Slice {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return
	}
	if _, present := structsChecked[t.String()]; present {
		// Already checked this type
		return
	}

	structsChecked[t.String()] = struct{}{}

	byUpperCase := make(map[string]int)
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)

		// Check that the yaml tag does not contain an _.
		yamlTag := sf.Tag.Get("yaml")
		if strings.Contains(yamlTag, "_") {
			tt.Fatalf("yaml field name includes _ character: %s", yamlTag)
		}
		upper := strings.ToUpper(sf.Name)
		if _, present := byUpperCase[upper]; present {
			tt.Fatalf("field name collision in configuration object: %s", sf.Name)
		}
		byUpperCase[upper] = i

		checkStructs(tt, sf.Type, structsChecked)
	}
}

// TestValidateConfigStruct makes sure that the config struct has no members
// with yaml tags that would be ambiguous to the environment variable parser.
func (suite *ConfigSuite) TestValidateConfigStruct() {
	structsChecked := make(map[string]struct{})
	checkStructs(suite.T(), reflect.TypeOf(Configuration{}), structsChecked)
}

func copyConfig(config Configuration) *Configuration {
	configCopy := new(Configuration)

	configCopy.Version = MajorMinorVersion(config.Version.Major(), config.Version.Minor())
	configCopy.Log = config.Log
	configCopy.Log.Fields = make(map[string]interface{}, len(config.Log.Fields))
	for k, v := range config.Log.Fields {
		configCopy.Log.Fields[k] = v
	}

	configCopy.Stores = make(Stores, len(config.Stores))
	for name, storage := range config.Stores {
		s := Storage{storage.Type(): Parameters{}}
		for k, v := range storage.Parameters() {
			s.setParameter(k, v)
		}
		configCopy.Stores[name] = s
	}

	configCopy.HTTP = config.HTTP
	configCopy.HTTP.Headers = make(http.Header)
	for k, v := range config.HTTP.Headers {
		configCopy.HTTP.Headers[k] = v
	}

	configCopy.Client = config.Client

	return configCopy
}
