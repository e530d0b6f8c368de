/*
Copyright © 2019 the SOS authors.
This file is part of SOS.

SOS is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

SOS is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with SOS.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package sosutil contains the command-line interface, configuration
// handling and output writers of the SOS model.
package sosutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/sos"
	"github.com/spatialmodel/sos/science/angles"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Geometry and angle options are shared by most commands.
	angleSets := []*pflag.FlagSet{runCmd.Flags(), anglesCmd.Flags(), mieCmd.Flags(), surfaceCmd.Flags()}
	aerosolSets := []*pflag.FlagSet{runCmd.Flags(), mieCmd.Flags(), profileCmd.Flags()}
	profileSets := []*pflag.FlagSet{runCmd.Flags(), profileCmd.Flags()}
	surfaceSets := []*pflag.FlagSet{runCmd.Flags(), surfaceCmd.Flags()}

	// Options are the configuration options available to SOS.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Limits",
			usage: `
              Limits selects the dimensioning of the run: "default" for
              grids of up to 68 radiance angles, or "extended" for 80.`,
			defaultVal: "default",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "Wavelength",
			usage: `
              Wavelength is the simulation wavelength [µm].`,
			shorthand:  "w",
			defaultVal: 0.55,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), mieCmd.Flags(), profileCmd.Flags()},
		},
		{
			name: "ANG.Thetas",
			usage: `
              ANG.Thetas is the solar zenith angle [degrees].`,
			defaultVal: 30.0,
			flagsets:   append([]*pflag.FlagSet{}, angleSets...),
		},
		{
			name: "ANG.Rad.NbGauss",
			usage: `
              ANG.Rad.NbGauss is the number of positive Gauss angles used for
              radiances. Zero selects the default.`,
			defaultVal: 0,
			flagsets:   append([]*pflag.FlagSet{}, angleSets...),
		},
		{
			name: "ANG.Rad.UserAngles",
			usage: `
              ANG.Rad.UserAngles are view zenith angles [degrees] added to the
              radiance angle grid.`,
			defaultVal: []string{},
			flagsets:   append([]*pflag.FlagSet{}, angleSets...),
		},
		{
			name: "ANG.Aer.NbGauss",
			usage: `
              ANG.Aer.NbGauss is the number of positive Gauss angles used for
              phase functions. Zero selects the default.`,
			defaultVal: 0,
			flagsets:   append([]*pflag.FlagSet{}, angleSets...),
		},
		{
			name: "ANG.Aer.UserAngles",
			usage: `
              ANG.Aer.UserAngles are scattering angles [degrees] added to the
              phase function angle grid.`,
			defaultVal: []string{},
			flagsets:   append([]*pflag.FlagSet{}, angleSets...),
		},
		{
			name: "AER.Model",
			usage: `
              AER.Model selects the aerosol model: -1 for no aerosols,
              0 mono-modal, 1 WMO, 2 Shettle & Fenn, 3 bimodal log-normal,
              4 external phase function, 5 size distribution expression,
              6 user-defined mixture of log-normal modes (AER.DefMixture).`,
			defaultVal: -1,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.AOT",
			usage: `
              AER.AOT is the aerosol optical thickness at AER.Waref.`,
			defaultVal: 0.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.Waref",
			usage: `
              AER.Waref is the wavelength [µm] at which AER.AOT is given.`,
			defaultVal: 0.55,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.Tronca",
			usage: `
              AER.Tronca specifies whether the forward peak of aerosol phase
              functions is truncated.`,
			defaultVal: true,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.SDtype",
			usage: `
              AER.MMD.SDtype is the mono-modal size distribution: 1 for
              log-normal, 2 for Junge.`,
			defaultVal: 1,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.MRwa",
			usage: `
              AER.MMD.MRwa is the real part of the particle refractive index
              at the simulation wavelength.`,
			defaultVal: 1.45,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.MIwa",
			usage: `
              AER.MMD.MIwa is the imaginary part of the particle refractive
              index at the simulation wavelength.`,
			defaultVal: 0.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.MRwaref",
			usage: `
              AER.MMD.MRwaref is the real part of the refractive index at
              AER.Waref.`,
			defaultVal: 1.45,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.MIwaref",
			usage: `
              AER.MMD.MIwaref is the imaginary part of the refractive index at
              AER.Waref.`,
			defaultVal: 0.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.LNDradius",
			usage: `
              AER.MMD.LNDradius is the modal radius [µm] of the log-normal
              size distribution.`,
			defaultVal: 0.1,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.LNDvar",
			usage: `
              AER.MMD.LNDvar is the standard deviation of the logarithm of
              the radius in the log-normal size distribution.`,
			defaultVal: 0.4,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.JD.slope",
			usage: `
              AER.MMD.JD.slope is the slope of the Junge size distribution.`,
			defaultVal: 4.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.JD.rmin",
			usage: `
              AER.MMD.JD.rmin is the smallest radius [µm] of the Junge size
              distribution.`,
			defaultVal: 0.01,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.MMD.JD.rmax",
			usage: `
              AER.MMD.JD.rmax is the largest radius [µm] of the Junge size
              distribution.`,
			defaultVal: 10.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.WMO.Model",
			usage: `
              AER.WMO.Model is the WMO aerosol model: continental, maritime,
              urban or user.`,
			defaultVal: "continental",
			flagsets:   aerosolSets,
		},
		{
			name: "AER.WMO.Fractions",
			usage: `
              AER.WMO.Fractions gives the volume fractions of the DL, WS, OC
              and SO components of the user WMO model.`,
			defaultVal: map[string]string{},
			flagsets:   aerosolSets,
		},
		{
			name: "AER.SF.Model",
			usage: `
              AER.SF.Model is the Shettle & Fenn aerosol model: rural, urban,
              maritime or tropospheric.`,
			defaultVal: "rural",
			flagsets:   aerosolSets,
		},
		{
			name: "AER.SF.RH",
			usage: `
              AER.SF.RH is the relative humidity [%] of the Shettle & Fenn
              model.`,
			defaultVal: 70.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.BMD.Fine",
			usage: `
              AER.BMD.Fine gives the modal radius [µm], the standard deviation
              of the logarithm of the radius, and the real and imaginary parts
              of the refractive index of the fine mode.`,
			defaultVal: []string{"0.1", "0.4", "1.45", "0.001"},
			flagsets:   aerosolSets,
		},
		{
			name: "AER.BMD.Coarse",
			usage: `
              AER.BMD.Coarse gives the same properties as AER.BMD.Fine for
              the coarse mode.`,
			defaultVal: []string{"1.0", "0.6", "1.53", "0.001"},
			flagsets:   aerosolSets,
		},
		{
			name: "AER.BMD.AOTratio",
			usage: `
              AER.BMD.AOTratio is the fraction of AER.AOT due to the fine
              mode.`,
			defaultVal: 0.5,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.ExtData",
			usage: `
              AER.ExtData is the path to an external phase function table.`,
			defaultVal: "",
			flagsets:   aerosolSets,
		},
		{
			name: "AER.Ext.SSA",
			usage: `
              AER.Ext.SSA is the single-scattering albedo of the external
              phase function.`,
			defaultVal: 1.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.Ext.Cext",
			usage: `
              AER.Ext.Cext is the extinction cross section [µm²] of the
              external phase function at the simulation wavelength and
              AER.Ext.CextRef the one at AER.Waref. The aerosol optical
              thickness is scaled by their ratio when both are set.`,
			defaultVal: 0.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.Ext.CextRef",
			usage: `
              AER.Ext.CextRef: see AER.Ext.Cext.`,
			defaultVal: 0.0,
			flagsets:   aerosolSets,
		},
		{
			name: "AER.DefMixture",
			usage: `
              AER.DefMixture is the path to a TOML file defining an aerosol
              mixture. Each [[mode]] table gives the Radius [µm] and LogSigma
              of a log-normal mode, its refractive Index and IndexRef at the
              simulation wavelength and AER.Waref as [real, imaginary], and
              the Rate of AER.AOT it contributes. Rates must sum to 1.`,
			defaultVal: "",
			flagsets:   aerosolSets,
		},
		{
			name: "AER.Expr.Formula",
			usage: `
              AER.Expr.Formula is the size distribution n(r) as an expression of the
              radius r [µm]. The refractive index is taken from AER.MMD.`,
			defaultVal: "",
			flagsets:   aerosolSets,
		},
		{
			name: "AER.Expr.Range",
			usage: `
              AER.Expr.Range is the radius range [µm] of AER.Expr.Formula.`,
			defaultVal: []string{"0.01", "10"},
			flagsets:   aerosolSets,
		},
		{
			name: "AP.MOT",
			usage: `
              AP.MOT is the molecular optical thickness. If negative, it is
              computed from the wavelength and AP.Psurf.`,
			defaultVal: -1.0,
			flagsets:   profileSets,
		},
		{
			name: "AP.Psurf",
			usage: `
              AP.Psurf is the surface pressure [hPa].`,
			defaultVal: 1013.25,
			flagsets:   profileSets,
		},
		{
			name: "AP.HR",
			usage: `
              AP.HR is the molecular scale height [km].`,
			defaultVal: 8.0,
			flagsets:   profileSets,
		},
		{
			name: "AP.MDF",
			usage: `
              AP.MDF is the molecular depolarization factor.`,
			defaultVal: 0.0279,
			flagsets:   profileSets,
		},
		{
			name: "AP.Type",
			usage: `
              AP.Type is the aerosol vertical profile: exponential, confined
              or user.`,
			defaultVal: "exponential",
			flagsets:   profileSets,
		},
		{
			name: "AP.HA",
			usage: `
              AP.HA is the aerosol scale height [km].`,
			defaultVal: 2.0,
			flagsets:   profileSets,
		},
		{
			name: "AP.Zmin",
			usage: `
              AP.Zmin and AP.Zmax are the altitudes [km] bounding a confined
              aerosol layer.`,
			defaultVal: 0.0,
			flagsets:   profileSets,
		},
		{
			name: "AP.Zmax",
			usage: `
              AP.Zmax: see AP.Zmin.`,
			defaultVal: 1.0,
			flagsets:   profileSets,
		},
		{
			name: "AP.UserFile",
			usage: `
              AP.UserFile is the path to a TOML file listing the levels of a
              user profile, from the top down, as [[level]] tables with
              altitude, rayleigh and aerosol keys giving the cumulative
              optical thickness above each level.`,
			defaultVal: "",
			flagsets:   profileSets,
		},
		{
			name: "AP.Layers",
			usage: `
              AP.Layers is the number of layers. Zero selects the maximum.`,
			defaultVal: 0,
			flagsets:   profileSets,
		},
		{
			name: "SOS.OutputAlt",
			usage: `
              SOS.OutputAlt is the altitude [km] at which radiances are
              reported. If negative, upward radiances are reported at the top
              of the atmosphere and downward radiances at the surface.`,
			defaultVal: -1.0,
			flagsets:   profileSets,
		},
		{
			name: "SURF.Type",
			usage: `
              SURF.Type is the surface model: lambert, glitter, roujean,
              rossli or tabulated.`,
			defaultVal: "lambert",
			flagsets:   surfaceSets,
		},
		{
			name: "SURF.Alb",
			usage: `
              SURF.Alb is the albedo of the Lambertian surface, or of the
              Lambertian component added to other surface models.`,
			defaultVal: 0.0,
			flagsets:   surfaceSets,
		},
		{
			name: "SURF.Ind",
			usage: `
              SURF.Ind is the refractive index of water for the glitter model.`,
			defaultVal: 1.34,
			flagsets:   surfaceSets,
		},
		{
			name: "SURF.Glitter.Wind",
			usage: `
              SURF.Glitter.Wind is the wind speed [m/s] for the glitter model.`,
			defaultVal: 5.0,
			flagsets:   surfaceSets,
		},
		{
			name: "SURF.Roujean",
			usage: `
              SURF.Roujean gives the K0, K1 and K2 kernel coefficients of the
              Roujean model.`,
			defaultVal: []string{"0.1", "0.02", "0.1"},
			flagsets:   surfaceSets,
		},
		{
			name: "SURF.RossLi",
			usage: `
              SURF.RossLi gives the isotropic, volumetric and geometric
              kernel coefficients of the Ross-Li model.`,
			defaultVal: []string{"0.1", "0.05", "0.02"},
			flagsets:   surfaceSets,
		},
		{
			name: "SURF.File",
			usage: `
              SURF.File is the path to a tabulated reflectance file.`,
			defaultVal: "",
			flagsets:   surfaceSets,
		},
		{
			name: "SURF.Order",
			usage: `
              SURF.Order is the largest Fourier order of the surface
              reflectance. Zero selects the default.`,
			defaultVal: 0,
			flagsets:   surfaceSets,
		},
		{
			name: "SOS.IGmax",
			usage: `
              SOS.IGmax is the maximum number of scattering orders. Zero
              selects the default.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SOS.MaxFourier",
			usage: `
              SOS.MaxFourier caps the Fourier series of the radiance. Zero
              computes every order needed.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SOS.IPolar",
			usage: `
              SOS.IPolar selects the polarization: 1 computes the Stokes
              parameters I, Q and U, 0 the radiance alone.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SOS.View.Type",
			usage: `
              SOS.View.Type selects the output directions: 1 for the plane of
              azimuth SOS.View.Phi, 2 for all azimuths in steps of
              SOS.View.Dphi.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SOS.View.Phi",
			usage: `
              SOS.View.Phi is the relative azimuth [degrees] of the output
              plane. Zero is the plane containing the specular direction.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SOS.View.Dphi",
			usage: `
              SOS.View.Dphi is the azimuth step [degrees] of the output.`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ABS.Mode",
			usage: `
              ABS.Mode selects gas absorption: 0 none, 1 equivalent
              transmission, 2 correlated k distribution.`,
			defaultVal: 0,
			flagsets:   profileSets,
		},
		{
			name: "ABS.Tables",
			usage: `
              ABS.Tables are the paths of the k distribution tables of the
              absorbing gases. Paths can include environment variables.`,
			defaultVal: []string{},
			flagsets:   profileSets,
		},
		{
			name: "ABS.Amounts",
			usage: `
              ABS.Amounts overrides the column amount of absorbing gases, for
              example {"H2O": 2.5, "O3": 300}.`,
			defaultVal: map[string]string{},
			flagsets:   profileSets,
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory where output files are written. It
              can include environment variables.`,
			shorthand:  "o",
			defaultVal: ".",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFormats",
			usage: `
              OutputFormats lists the output files to write: text, gob,
              netcdf, xlsx and png.`,
			defaultVal: []string{"text", "gob"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank, the
              logfile is saved in OutputDir.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "nooverwrite",
			usage: `
              nooverwrite aborts the run if an output file already exists
              instead of overwriting it.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("SOS")

	for _, option := range options {
		// Commands without a flag for an option still see its default.
		Cfg.SetDefault(option.name, option.defaultVal)
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
			case bool:
				set.Bool(option.name, option.defaultVal.(bool), option.usage)
			case int:
				set.Int(option.name, option.defaultVal.(int), option.usage)
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				set.String(option.name, b.String(), option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(anglesCmd)
	Root.AddCommand(mieCmd)
	Root.AddCommand(surfaceCmd)
	Root.AddCommand(profileCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("sos: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "sos",
	Short: "A successive orders of scattering radiative transfer model.",
	Long: `SOS computes the solar radiance field of a plane-parallel atmosphere
containing molecules, aerosols and absorbing gases above a reflecting
surface, using the method of successive orders of scattering.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SOS_var' where 'var' is the
name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of SOS.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("SOS v%s\n", sos.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd computes and writes a radiance field.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run computes the phase functions of the aerosols, builds the layered
atmosphere and the surface reflectance, solves for the radiance field and
writes the radiances, fluxes and transmissions to OutputDir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := Load(Cfg)
		if err != nil {
			return err
		}
		out, err := OutputConfig(Cfg)
		if err != nil {
			return err
		}
		_, err = Run(cmd.OutOrStdout(), c, out)
		return err
	},
	DisableAutoGenTag: true,
}

// anglesCmd prints the angle grids.
var anglesCmd = &cobra.Command{
	Use:   "angles",
	Short: "Print the angle grids.",
	Long: `angles prints the cosines, zenith angles and quadrature weights of the
phase function and radiance angle grids.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lim, err := LimitsConfig(Cfg)
		if err != nil {
			return err
		}
		ac, err := AngleConfig(Cfg)
		if err != nil {
			return err
		}
		g, err := angles.New(lim, ac)
		if err != nil {
			return err
		}
		writeGrid(cmd.OutOrStdout(), g.Mie)
		writeGrid(cmd.OutOrStdout(), g.Radiance)
		return nil
	},
	DisableAutoGenTag: true,
}

// mieCmd prints the aerosol phase functions.
var mieCmd = &cobra.Command{
	Use:   "mie",
	Short: "Compute aerosol phase functions.",
	Long: `mie computes the phase matrix and Legendre moments of the configured
aerosol model at the simulation wavelength.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := Load(Cfg)
		if err != nil {
			return err
		}
		g, err := angles.New(c.Limits, c.Angles)
		if err != nil {
			return err
		}
		a, err := c.Aerosol.Compute(c.Limits, g.Mie, c.Wavelength, c.Log)
		if err != nil {
			return err
		}
		for _, m := range a.Modes {
			writePhase(cmd.OutOrStdout(), m.Phase)
		}
		return nil
	},
	DisableAutoGenTag: true,
}

// surfaceCmd prints the Fourier expansion of the surface reflectance.
var surfaceCmd = &cobra.Command{
	Use:   "surface",
	Short: "Expand the surface reflectance in Fourier series.",
	Long: `surface computes the azimuthal Fourier components of the configured
surface reflectance on the radiance angle grid and prints a summary.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := Load(Cfg)
		if err != nil {
			return err
		}
		g, err := angles.New(c.Limits, c.Angles)
		if err != nil {
			return err
		}
		f, warnings, err := c.decompose(g.Radiance)
		if err != nil {
			return err
		}
		for _, w := range warnings {
			c.Log.Warn(w)
		}
		writeSurface(cmd.OutOrStdout(), f, g.Radiance)
		return nil
	},
	DisableAutoGenTag: true,
}

// profileCmd prints the layered atmosphere.
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Print the layered atmosphere.",
	Long: `profile builds the layered atmosphere, including aerosols and gas
absorption, and prints the optical properties of each layer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := Load(Cfg)
		if err != nil {
			return err
		}
		g, err := angles.New(c.Limits, c.Angles)
		if err != nil {
			return err
		}
		p, _, err := c.profile(g.Mie)
		if err != nil {
			return err
		}
		writeProfile(cmd.OutOrStdout(), p)
		return nil
	},
	DisableAutoGenTag: true,
}
